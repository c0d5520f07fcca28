package websocket

import (
	"lmlang/internal/application/propagation"
	derr "lmlang/internal/domain/errors"
)

// PublishFlushReport pushes a completed flush's report to every client
// watching programID. Publication is fire-and-forget: Broadcast.Broadcast
// never blocks and a full hub buffer just drops the event, so a stalled or
// absent notification client can never hold up a flush (SPEC_FULL.md §4.6).
func PublishFlushReport(b Broadcaster, programID string, report propagation.FlushReport) {
	b.Broadcast(programID, NewEvent(EventFlushReport, programID, report))
}

// ContractViolationEvent is the notification payload for a single
// interpreter or property-test contract violation.
type ContractViolationEvent struct {
	FunctionID uint64            `json:"function_id"`
	Info       derr.ContractInfo `json:"info"`
	Source     string            `json:"source"` // "simulate" | "property_test"
}

// PublishContractViolation pushes a contract violation witnessed outside
// the propagation engine (simulate, property-test) to programID's watchers.
func PublishContractViolation(b Broadcaster, programID string, fid uint64, info derr.ContractInfo, source string) {
	b.Broadcast(programID, NewEvent(EventContractViolation, programID, ContractViolationEvent{
		FunctionID: fid,
		Info:       info,
		Source:     source,
	}))
}
