package dedup

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sebasr/wifi-registry/internal/models"
)

// Engine filters repeated records. An Engine holds only configuration and
// the optional history seed; every call gets its own SeenSet.
type Engine struct {
	fields  []string
	history []string
}

// Result is the outcome of one dedup call
type Result struct {
	Records     []models.Payload `json:"records"`
	InputCount  int              `json:"input_count"`
	OutputCount int              `json:"output_count"`
	Removed     int              `json:"removed"`
	// Skipped counts array elements that were not objects
	Skipped int `json:"skipped"`
}

// NewEngine creates an engine keyed on fields, or on DefaultFields when none are given
func NewEngine(fields ...string) *Engine {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	return &Engine{fields: append([]string(nil), fields...)}
}

// Fields returns the configured identity fields
func (e *Engine) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Signature computes the identity of p under the engine's fields
func (e *Engine) Signature(p models.Payload) string {
	return Signature(p, e.fields)
}

// WithSeen returns a copy of the engine whose seen-sets start out holding
// signatures, typically computed from already persisted records
func (e *Engine) WithSeen(signatures ...string) *Engine {
	return &Engine{
		fields:  e.fields,
		history: append(append([]string(nil), e.history...), signatures...),
	}
}

// SeenSet tracks signatures for the lifetime of a single call
type SeenSet struct {
	engine *Engine
	seen   map[string]struct{}
}

// NewSeenSet starts a call-scoped set seeded with the engine's history
func (e *Engine) NewSeenSet() *SeenSet {
	seen := make(map[string]struct{}, len(e.history))
	for _, sig := range e.history {
		seen[sig] = struct{}{}
	}
	return &SeenSet{engine: e, seen: seen}
}

// Add records p and reports whether it was seen for the first time
func (s *SeenSet) Add(p models.Payload) bool {
	sig := s.engine.Signature(p)
	if _, dup := s.seen[sig]; dup {
		return false
	}
	s.seen[sig] = struct{}{}
	return true
}

// Len returns the number of distinct signatures held
func (s *SeenSet) Len() int {
	return len(s.seen)
}

type collector struct {
	seen   *SeenSet
	result Result
}

func (c *collector) add(item any) {
	c.result.InputCount++
	p, ok := asObject(item)
	if !ok {
		c.result.Skipped++
		return
	}
	if !c.seen.Add(p) {
		c.result.Removed++
		return
	}
	c.result.Records = append(c.result.Records, p)
	c.result.OutputCount++
}

func (e *Engine) newCollector() *collector {
	return &collector{
		seen:   e.NewSeenSet(),
		result: Result{Records: []models.Payload{}},
	}
}

// Dedup keeps the first occurrence of every signature, preserving order
func (e *Engine) Dedup(records []models.Payload) Result {
	c := e.newCollector()
	for _, r := range records {
		c.add(r)
	}
	return c.result
}

// DedupStream reads one JSON document from r. A top-level array is decoded
// element by element; an object is searched for its record array.
func (e *Engine) DedupStream(r io.Reader) (Result, error) {
	c := e.newCollector()
	if err := c.consume(r); err != nil {
		return Result{}, err
	}
	return c.result, nil
}

// DedupSources treats readers as one concatenated input sharing a seen-set
func (e *Engine) DedupSources(readers ...io.Reader) (Result, error) {
	c := e.newCollector()
	for i, r := range readers {
		if err := c.consume(r); err != nil {
			return Result{}, fmt.Errorf("source %d: %w", i, err)
		}
	}
	return c.result, nil
}

// DedupFiles deduplicates the records of several JSON files in the given order
func (e *Engine) DedupFiles(paths ...string) (Result, error) {
	c := e.newCollector()
	for _, path := range paths {
		if err := c.consumeFile(path); err != nil {
			return Result{}, err
		}
	}
	return c.result, nil
}

// DedupDir deduplicates every *.json file in dir, in lexical file name order
func (e *Engine) DedupDir(dir string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return e.DedupFiles(paths...)
}

func (c *collector) consumeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := c.consume(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *collector) consume(r io.Reader) error {
	return Walk(r, c.add)
}

// Walk reads one JSON document from r and calls fn for every record
// element. A top-level array is decoded element by element without loading
// the whole document; any other document is decoded and searched with
// FindRecords.
func Walk(r io.Reader, fn func(item any)) error {
	br := bufio.NewReader(r)
	first, err := PeekStart(br)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	if first != '[' {
		raw, err := io.ReadAll(br)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		doc, err := decodeStrict(raw)
		if err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		items, err := FindRecords(doc)
		if err != nil {
			return err
		}
		for _, item := range items {
			fn(item)
		}
		return nil
	}

	dec := json.NewDecoder(br)
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode element %d: %w", i, err)
		}
		item, err := decodeStrict(raw)
		if err != nil {
			return fmt.Errorf("failed to decode element %d: %w", i, err)
		}
		fn(item)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}

// decodeStrict decodes one complete UTF-8 JSON value keeping numbers as
// json.Number
func decodeStrict(raw []byte) (any, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidUTF8
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return v, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PeekStart returns the first significant byte of a JSON document without
// consuming it. Leading whitespace and a UTF-8 byte order mark are skipped.
func PeekStart(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.Discard(1); err != nil {
				return 0, err
			}
			continue
		case utf8BOM[0]:
			if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, utf8BOM) {
				if _, err := br.Discard(3); err != nil {
					return 0, err
				}
				continue
			}
		}
		return b[0], nil
	}
}
