package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/application/propagation"
	derr "lmlang/internal/domain/errors"
)

type recordingBroadcaster struct {
	programID string
	event     *Event
}

func (r *recordingBroadcaster) Broadcast(programID string, event *Event) {
	r.programID = programID
	r.event = event
}

func TestPublishFlushReport_WrapsReportAsEvent(t *testing.T) {
	b := &recordingBroadcaster{}
	report := propagation.FlushReport{Processed: 2, Applied: 1, Skipped: 1}

	PublishFlushReport(b, "p1", report)

	require.NotNil(t, b.event)
	assert.Equal(t, "p1", b.programID)
	assert.Equal(t, EventFlushReport, b.event.Type)
	assert.Equal(t, report, b.event.Payload)
}

func TestPublishContractViolation_WrapsInfoAsEvent(t *testing.T) {
	b := &recordingBroadcaster{}
	info := derr.ContractInfo{Kind: "pre", NodeID: 7}

	PublishContractViolation(b, "p1", 3, info, "simulate")

	require.NotNil(t, b.event)
	assert.Equal(t, EventContractViolation, b.event.Type)
	payload, ok := b.event.Payload.(ContractViolationEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(3), payload.FunctionID)
	assert.Equal(t, "simulate", payload.Source)
}
