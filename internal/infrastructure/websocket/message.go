package websocket

import "time"

// Server -> client event types streamed over a program's notification
// socket (SPEC_FULL.md §6's additive GET /programs/{id}/notifications).
const (
	EventFlushReport       = "flush_report"
	EventContractViolation = "contract_violation"
)

// Event is the envelope pushed to every subscriber of a program's
// notification stream.
type Event struct {
	Type      string    `json:"type"`
	ProgramID string    `json:"program_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent wraps payload for programID.
func NewEvent(eventType, programID string, payload any) *Event {
	return &Event{Type: eventType, ProgramID: programID, Timestamp: time.Now(), Payload: payload}
}
