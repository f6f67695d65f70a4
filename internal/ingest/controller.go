// Package ingest drives raw access point payloads through normalization,
// validation, deduplication and storage.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/dedup"
	"github.com/sebasr/wifi-registry/internal/metrics"
	"github.com/sebasr/wifi-registry/internal/models"
	"github.com/sebasr/wifi-registry/internal/repository"
	"github.com/sebasr/wifi-registry/internal/validation"
)

// Placeholder values from the payload documentation
const (
	ExampleBSSID = "00:11:22:33:44:55"
	ExampleSSID  = "MyWiFi"
)

// DefaultProgressInterval is how many records pass between progress callbacks
const DefaultProgressInterval = 10

// ProgressFunc observes batch progress. total is 0 while a stream is still
// being read.
type ProgressFunc func(processed, total int)

// Controller is the entry point for every ingestion transport
type Controller struct {
	repo             repository.AccessPointRepository
	engine           *dedup.Engine
	logger           *zap.Logger
	metrics          *metrics.Metrics
	maxErrors        int
	progressInterval int
	historyDedup     bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithDedupEngine sets the identity rule used within batches
func WithDedupEngine(e *dedup.Engine) Option {
	return func(c *Controller) { c.engine = e }
}

// WithMaxReportedErrors bounds the failure reasons kept per batch
func WithMaxReportedErrors(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxErrors = n
		}
	}
}

// WithProgressInterval sets how often the progress callback fires
func WithProgressInterval(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.progressInterval = n
		}
	}
}

// WithHistoryDedup seeds every batch's seen-set with the stored records
func WithHistoryDedup(enabled bool) Option {
	return func(c *Controller) { c.historyDedup = enabled }
}

// NewController creates a controller storing into repo
func NewController(repo repository.AccessPointRepository, opts ...Option) *Controller {
	c := &Controller{
		repo:             repo,
		engine:           dedup.NewEngine(),
		logger:           zap.NewNop(),
		maxErrors:        models.DefaultMaxReportedErrors,
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callOptions struct {
	progress ProgressFunc
	lenient  bool
}

// CallOption tunes a single ingestion call
type CallOption func(*callOptions)

// WithProgress registers a progress callback for batch calls
func WithProgress(fn ProgressFunc) CallOption {
	return func(o *callOptions) { o.progress = fn }
}

// Lenient fills missing required fields with zero values before validation,
// for hand-typed input
func Lenient() CallOption {
	return func(o *callOptions) { o.lenient = true }
}

func collectOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DocumentResult is the outcome of ingesting a whole document. BSSID is set
// for single-object documents, Batch for arrays and record containers.
type DocumentResult struct {
	BSSID string              `json:"bssid,omitempty"`
	Batch *models.BatchResult `json:"batch,omitempty"`
}

// Decode parses UTF-8 JSON keeping numbers as json.Number
func Decode(raw []byte) (any, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		return nil, &ParseError{Err: errors.New("input is not valid UTF-8")}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Err: errors.New("unexpected data after JSON value")}
	}

	return doc, nil
}

// Ingest stores one record. payload may be raw JSON ([]byte, string,
// json.RawMessage) or an already decoded object. Arrays are rejected with a
// StructuralError; use IngestBatch or IngestDocument for them.
func (c *Controller) Ingest(ctx context.Context, payload any, opts ...CallOption) (string, error) {
	doc, err := decodePayload(payload)
	if err != nil {
		return "", err
	}

	obj, ok := asObject(doc)
	if !ok {
		if _, isArray := doc.([]any); isArray {
			return "", &StructuralError{Reason: "payload is an array, use batch ingestion"}
		}
		return "", &StructuralError{Reason: "payload must be a JSON object"}
	}

	o := collectOptions(opts)
	bssid, err := c.ingestObject(ctx, obj, o.lenient, nil)
	c.metrics.RecordOutcome(outcome(err))
	if err != nil {
		c.logger.Info("record rejected",
			zap.String("kind", Kind(err)),
			zap.String("bssid", rawBSSID(obj)),
			zap.Error(err))
		return "", err
	}

	c.logger.Info("record stored", zap.String("bssid", bssid))
	return bssid, nil
}

// IngestBatch processes items sequentially. Failures are recorded per
// element and never abort the batch.
func (c *Controller) IngestBatch(ctx context.Context, items []any, opts ...CallOption) *models.BatchResult {
	b := c.newBatch(ctx, len(items), collectOptions(opts))
	for _, item := range items {
		b.add(ctx, item)
	}
	return b.finish()
}

// IngestDocument decodes raw and routes it: an object holding a bssid is a
// single record, an array or an object wrapping a record array is a batch.
func (c *Controller) IngestDocument(ctx context.Context, raw []byte, opts ...CallOption) (*DocumentResult, error) {
	doc, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return c.ingestDecoded(ctx, doc, opts...)
}

// IngestReader ingests a document from r. Top-level arrays are processed
// element by element while being read.
func (c *Controller) IngestReader(ctx context.Context, r io.Reader, opts ...CallOption) (*DocumentResult, error) {
	br := bufio.NewReader(r)
	first, err := dedup.PeekStart(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: errors.New("empty document")}
		}
		return nil, &StorageError{Op: "read", Err: err}
	}

	if first != '[' {
		raw, err := io.ReadAll(br)
		if err != nil {
			return nil, &StorageError{Op: "read", Err: err}
		}
		return c.IngestDocument(ctx, raw, opts...)
	}

	b := c.newBatch(ctx, 0, collectOptions(opts))
	walkErr := dedup.Walk(br, func(item any) { b.add(ctx, item) })
	result := &DocumentResult{Batch: b.finish()}
	if walkErr != nil {
		return result, &ParseError{Err: walkErr}
	}
	return result, nil
}

func (c *Controller) ingestDecoded(ctx context.Context, doc any, opts ...CallOption) (*DocumentResult, error) {
	switch v := doc.(type) {
	case []any:
		return &DocumentResult{Batch: c.IngestBatch(ctx, v, opts...)}, nil
	case map[string]any:
		if _, single := v[models.FieldBSSID]; !single {
			if items, err := dedup.FindRecords(v); err == nil {
				return &DocumentResult{Batch: c.IngestBatch(ctx, items, opts...)}, nil
			}
		}
		bssid, err := c.Ingest(ctx, models.Payload(v), opts...)
		if err != nil {
			return nil, err
		}
		return &DocumentResult{BSSID: bssid}, nil
	default:
		return nil, &StructuralError{Reason: "document must be a JSON object or array"}
	}
}

// Enrich attaches pavilion and password to a stored record. Other fields
// keep their stored values.
func (c *Controller) Enrich(ctx context.Context, bssid string, pavilion *int, password *string) error {
	existing, err := c.repo.Get(ctx, bssid)
	if err != nil {
		if errors.Is(err, repository.ErrAccessPointNotFound) {
			return &NotFoundError{BSSID: bssid}
		}
		return &StorageError{Op: "read", Err: err}
	}

	merged := existing.WithEnrichment(pavilion, password)
	if err := c.repo.Update(ctx, existing.BSSID, merged); err != nil {
		var verr *validation.ValidationError
		switch {
		case errors.Is(err, repository.ErrAccessPointNotFound):
			return &NotFoundError{BSSID: bssid}
		case errors.As(err, &verr):
			return err
		default:
			return &StorageError{Op: "update", Err: err}
		}
	}

	c.logger.Info("record enriched",
		zap.String("bssid", existing.BSSID),
		zap.Bool("pavilion_set", pavilion != nil),
		zap.Bool("password_set", password != nil))
	return nil
}

// ingestObject runs one object through the pipeline. When seen is non-nil a
// repeated signature is reported as errDuplicate.
func (c *Controller) ingestObject(ctx context.Context, obj models.Payload, lenient bool, seen *dedup.SeenSet) (string, error) {
	if err := checkExample(obj); err != nil {
		return "", err
	}

	var p models.Payload
	if lenient {
		p = validation.NormalizeLenient(obj)
	} else {
		p = validation.Normalize(obj)
	}

	ap, err := validation.Record(p)
	if err != nil {
		return "", err
	}

	// signatures use the typed record so stored and incoming forms agree
	if seen != nil && !seen.Add(ap.ToPayload()) {
		return "", errDuplicate
	}

	if err := c.repo.Create(ctx, ap); err != nil {
		var verr *validation.ValidationError
		switch {
		case errors.Is(err, repository.ErrAccessPointExists):
			return "", &ConflictError{BSSID: ap.BSSID}
		case errors.As(err, &verr):
			return "", err
		default:
			c.logger.Error("failed to store record", zap.String("bssid", ap.BSSID), zap.Error(err))
			return "", &StorageError{Op: "create", Err: err}
		}
	}

	return ap.BSSID, nil
}

var errDuplicate = errors.New("duplicate record")

func decodePayload(payload any) (any, error) {
	switch v := payload.(type) {
	case []byte:
		return Decode(v)
	case json.RawMessage:
		return Decode(v)
	case string:
		return Decode([]byte(v))
	default:
		return v, nil
	}
}

func asObject(v any) (models.Payload, bool) {
	switch o := v.(type) {
	case map[string]any:
		return models.Payload(o), true
	case models.Payload:
		return o, true
	}
	return nil, false
}

// checkExample rejects payloads carrying the documentation placeholders
func checkExample(obj models.Payload) error {
	if bssid, ok := obj[models.FieldBSSID].(string); ok && strings.EqualFold(strings.TrimSpace(bssid), ExampleBSSID) {
		return &ExampleDataError{Field: models.FieldBSSID, Value: ExampleBSSID}
	}
	if ssid, ok := obj[models.FieldSSID].(string); ok && ssid == ExampleSSID {
		return &ExampleDataError{Field: models.FieldSSID, Value: ExampleSSID}
	}
	return nil
}

func rawBSSID(obj models.Payload) string {
	if s, ok := obj[models.FieldBSSID].(string); ok {
		return s
	}
	return ""
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeStored
	}
	return Kind(err)
}

// batch accumulates the outcome of one batch call
type batch struct {
	c        *Controller
	opts     callOptions
	seen     *dedup.SeenSet
	result   *models.BatchResult
	index    int
	started  time.Time
	knownLen bool
}

func (c *Controller) newBatch(ctx context.Context, total int, opts callOptions) *batch {
	return &batch{
		c:        c,
		opts:     opts,
		seen:     c.seenSet(ctx),
		result:   models.NewBatchResult(total, c.maxErrors),
		started:  time.Now(),
		knownLen: total > 0,
	}
}

// seenSet starts the call-scoped seen-set, seeded from the store when
// history dedup is enabled
func (c *Controller) seenSet(ctx context.Context) *dedup.SeenSet {
	if !c.historyDedup {
		return c.engine.NewSeenSet()
	}

	stored, err := c.repo.List(ctx)
	if err != nil {
		c.logger.Error("failed to load stored records for dedup, continuing without history", zap.Error(err))
		return c.engine.NewSeenSet()
	}

	signatures := make([]string, 0, len(stored))
	for _, ap := range stored {
		signatures = append(signatures, c.engine.Signature(ap.ToPayload()))
	}
	return c.engine.WithSeen(signatures...).NewSeenSet()
}

func (b *batch) add(ctx context.Context, item any) {
	index := b.index
	b.index++
	if !b.knownLen {
		b.result.Total = b.index
	}

	b.process(ctx, index, item)

	if b.opts.progress != nil && b.index%b.c.progressInterval == 0 {
		total := b.result.Total
		if !b.knownLen {
			total = 0
		}
		b.opts.progress(b.index, total)
	}
}

func (b *batch) process(ctx context.Context, index int, item any) {
	if err := ctx.Err(); err != nil {
		b.fail(index, "", &StorageError{Op: "create", Err: err})
		return
	}

	obj, ok := asObject(item)
	if !ok {
		b.fail(index, "", &StructuralError{Reason: fmt.Sprintf("element %d is not a JSON object", index)})
		return
	}

	bssid, err := b.c.ingestObject(ctx, obj, b.opts.lenient, b.seen)
	switch {
	case errors.Is(err, errDuplicate):
		b.result.AddDuplicate()
		b.c.metrics.RecordDuplicate()
	case err != nil:
		b.fail(index, rawBSSID(obj), err)
	default:
		b.result.AddSuccess(bssid)
		b.c.metrics.RecordOutcome(metrics.OutcomeStored)
	}
}

func (b *batch) fail(index int, bssid string, err error) {
	kind := Kind(err)
	b.result.AddFailure(index, bssid, kind, err.Error())
	b.c.metrics.RecordOutcome(kind)
	b.c.logger.Debug("batch element rejected",
		zap.Int("index", index),
		zap.String("kind", kind),
		zap.Error(err))
}

func (b *batch) finish() *models.BatchResult {
	elapsed := time.Since(b.started)
	b.c.metrics.ObserveBatch(elapsed)
	b.c.logger.Info("batch ingested",
		zap.Int("total", b.result.Total),
		zap.Int("succeeded", b.result.Succeeded),
		zap.Int("failed", b.result.Failed),
		zap.Int("duplicates", b.result.Duplicates),
		zap.Duration("elapsed", elapsed))
	return b.result
}
