package models

import "fmt"

// DefaultMaxReportedErrors bounds the failure sample kept in a BatchResult
const DefaultMaxReportedErrors = 10

// BatchError describes why one element of a batch was not stored
type BatchError struct {
	Index  int    `json:"index"`
	BSSID  string `json:"bssid,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BatchResult summarizes one batch ingestion call. It is never persisted.
type BatchResult struct {
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Duplicates int          `json:"duplicates"`
	Stored     []string     `json:"stored"`
	Errors     []BatchError `json:"errors"`

	maxErrors int
}

// NewBatchResult creates a result for a batch of total elements keeping at
// most maxErrors failure reasons
func NewBatchResult(total, maxErrors int) *BatchResult {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxReportedErrors
	}
	return &BatchResult{
		Total:     total,
		Stored:    []string{},
		Errors:    []BatchError{},
		maxErrors: maxErrors,
	}
}

// AddSuccess records a stored element
func (r *BatchResult) AddSuccess(bssid string) {
	r.Succeeded++
	r.Stored = append(r.Stored, bssid)
}

// AddDuplicate records an element dropped because its signature was already seen
func (r *BatchResult) AddDuplicate() {
	r.Duplicates++
}

// AddFailure records a rejected element. Only the first maxErrors reasons are kept.
func (r *BatchResult) AddFailure(index int, bssid, kind, reason string) {
	r.Failed++
	if len(r.Errors) >= r.maxErrors {
		return
	}
	r.Errors = append(r.Errors, BatchError{
		Index:  index,
		BSSID:  bssid,
		Kind:   kind,
		Reason: reason,
	})
}

// Processed returns how many elements have been handled so far
func (r *BatchResult) Processed() int {
	return r.Succeeded + r.Failed + r.Duplicates
}

// Summary renders the counters as a short human-readable line
func (r *BatchResult) Summary() string {
	s := fmt.Sprintf("Successful: %d/%d, Errors: %d/%d", r.Succeeded, r.Total, r.Failed, r.Total)
	if r.Duplicates > 0 {
		s += fmt.Sprintf(", Duplicates: %d/%d", r.Duplicates, r.Total)
	}
	return s
}
