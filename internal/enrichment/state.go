// Package enrichment implements the conversation that attaches a pavilion
// number and a password to a freshly stored access point.
package enrichment

// Step is the position of a session in the enrichment conversation
type Step string

const (
	StepIdle             Step = "idle"
	StepAwaitingPavilion Step = "awaiting_pavilion"
	StepAwaitingPassword Step = "awaiting_password"
)

// State is the per-session conversation state. BSSID is set outside Idle,
// Pavilion only while awaiting the password (nil means no pavilion).
type State struct {
	Step     Step   `json:"step"`
	BSSID    string `json:"bssid,omitempty"`
	Pavilion *int   `json:"pavilion,omitempty"`
}

// Idle is the state of a session with no conversation in progress
func Idle() State {
	return State{Step: StepIdle}
}

// IsIdle reports whether no conversation is in progress
func (s State) IsIdle() bool {
	return s.Step == "" || s.Step == StepIdle
}
