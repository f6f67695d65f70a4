package enrichment

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sebasr/wifi-registry/internal/metrics"
	"github.com/sebasr/wifi-registry/internal/repository"
)

// Enricher writes the collected values to the record store
type Enricher interface {
	Enrich(ctx context.Context, bssid string, pavilion *int, password *string) error
}

// ReplyKind tells a transport what happened so it can phrase the answer
type ReplyKind string

const (
	ReplyAskPavilion     ReplyKind = "ask_pavilion"
	ReplyInvalidPavilion ReplyKind = "invalid_pavilion"
	ReplyAskPassword     ReplyKind = "ask_password"
	ReplyUpdated         ReplyKind = "updated"
	ReplyNotFound        ReplyKind = "not_found"
	ReplyFailed          ReplyKind = "failed"
	ReplyCancelled       ReplyKind = "cancelled"
	ReplyIdle            ReplyKind = "idle"
)

// Reply is the outcome of one conversation step
type Reply struct {
	Kind  ReplyKind `json:"kind"`
	Text  string    `json:"text"`
	State State     `json:"state"`
}

var replyText = map[ReplyKind]string{
	ReplyAskPavilion:     "Enter the pavilion number (or '0' / 'none' if there is none):",
	ReplyInvalidPavilion: "The pavilion number must be a positive integer, or '0' / 'none'. Try again:",
	ReplyAskPassword:     "Enter the Wi-Fi password (or '0' / 'none' if there is no password):",
	ReplyUpdated:         "Record updated.",
	ReplyNotFound:        "The access point no longer exists, nothing was updated.",
	ReplyFailed:          "Could not update the record.",
	ReplyCancelled:       "Cancelled.",
	ReplyIdle:            "Nothing to do. Send access point data first.",
}

func reply(kind ReplyKind, state State) Reply {
	return Reply{Kind: kind, Text: replyText[kind], State: state}
}

// Machine drives enrichment conversations. Each session's state lives in the
// store, so sessions never observe each other.
type Machine struct {
	store    SessionStore
	enricher Enricher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Machine
type Option func(*Machine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// NewMachine creates a machine persisting state in store
func NewMachine(store SessionStore, enricher Enricher, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		enricher: enricher,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ErrEmptyBSSID is returned when a conversation is started without a record
var ErrEmptyBSSID = errors.New("bssid is required to start enrichment")

// Start begins a conversation for bssid, replacing any previous one
func (m *Machine) Start(ctx context.Context, session, bssid string) (Reply, error) {
	bssid = strings.TrimSpace(bssid)
	if bssid == "" {
		return Reply{}, ErrEmptyBSSID
	}

	state := State{Step: StepAwaitingPavilion, BSSID: bssid}
	if err := m.store.Save(ctx, session, state); err != nil {
		return Reply{}, err
	}

	m.logger.Debug("enrichment started", zap.String("session", session), zap.String("bssid", bssid))
	return reply(ReplyAskPavilion, state), nil
}

// Handle feeds one line of user input into the session's conversation
func (m *Machine) Handle(ctx context.Context, session, text string) (Reply, error) {
	state, err := m.store.Load(ctx, session)
	if err != nil {
		return Reply{}, err
	}

	if state.IsIdle() {
		return reply(ReplyIdle, Idle()), nil
	}

	input := strings.TrimSpace(text)
	if isCancel(input) {
		return m.cancel(ctx, session)
	}

	switch state.Step {
	case StepAwaitingPavilion:
		pavilion, ok := parsePavilion(input)
		if !ok {
			return reply(ReplyInvalidPavilion, state), nil
		}
		next := State{Step: StepAwaitingPassword, BSSID: state.BSSID, Pavilion: pavilion}
		if err := m.store.Save(ctx, session, next); err != nil {
			return Reply{}, err
		}
		return reply(ReplyAskPassword, next), nil

	case StepAwaitingPassword:
		return m.finish(ctx, session, state, parsePassword(input))

	default:
		m.logger.Warn("unknown enrichment step, resetting", zap.String("session", session), zap.String("step", string(state.Step)))
		if err := m.store.Delete(ctx, session); err != nil {
			return Reply{}, err
		}
		return reply(ReplyIdle, Idle()), nil
	}
}

// Cancel abandons the session's conversation without writing to the store
func (m *Machine) Cancel(ctx context.Context, session string) (Reply, error) {
	state, err := m.store.Load(ctx, session)
	if err != nil {
		return Reply{}, err
	}
	if state.IsIdle() {
		return reply(ReplyIdle, Idle()), nil
	}
	return m.cancel(ctx, session)
}

// State returns the session's current state
func (m *Machine) State(ctx context.Context, session string) (State, error) {
	return m.store.Load(ctx, session)
}

func (m *Machine) cancel(ctx context.Context, session string) (Reply, error) {
	if err := m.store.Delete(ctx, session); err != nil {
		return Reply{}, err
	}
	m.metrics.RecordEnrichment(string(ReplyCancelled))
	return reply(ReplyCancelled, Idle()), nil
}

// finish writes the collected values. The session returns to Idle whatever
// the outcome.
func (m *Machine) finish(ctx context.Context, session string, state State, password *string) (Reply, error) {
	if err := m.store.Delete(ctx, session); err != nil {
		return Reply{}, err
	}

	err := m.enricher.Enrich(ctx, state.BSSID, state.Pavilion, password)
	switch {
	case err == nil:
		m.metrics.RecordEnrichment(string(ReplyUpdated))
		m.logger.Info("enrichment completed", zap.String("session", session), zap.String("bssid", state.BSSID))
		return reply(ReplyUpdated, Idle()), nil
	case errors.Is(err, repository.ErrAccessPointNotFound):
		m.metrics.RecordEnrichment(string(ReplyNotFound))
		m.logger.Info("enrichment target vanished", zap.String("session", session), zap.String("bssid", state.BSSID))
		return reply(ReplyNotFound, Idle()), nil
	default:
		m.metrics.RecordEnrichment("error")
		m.logger.Error("enrichment failed", zap.String("session", session), zap.String("bssid", state.BSSID), zap.Error(err))
		return reply(ReplyFailed, Idle()), err
	}
}

func isCancel(input string) bool {
	lower := strings.ToLower(input)
	return lower == "cancel" || lower == "/cancel"
}

func isNone(input string) bool {
	lower := strings.ToLower(input)
	return lower == "0" || lower == "none"
}

// parsePavilion accepts a positive integer or the "no pavilion" markers
func parsePavilion(input string) (*int, bool) {
	if isNone(input) {
		return nil, true
	}
	n, err := strconv.Atoi(input)
	if err != nil || n <= 0 {
		return nil, false
	}
	return &n, true
}

func parsePassword(input string) *string {
	if input == "" || isNone(input) {
		return nil
	}
	return &input
}
