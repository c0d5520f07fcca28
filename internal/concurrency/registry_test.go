package concurrency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmlang/internal/domain"
	"lmlang/internal/infrastructure/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	secret, err := NewSecret()
	require.NoError(t, err)
	return NewRegistry(secret, storage.NewMemoryStore())
}

func TestRegister_IssuesValidToken(t *testing.T) {
	r := newTestRegistry(t)
	token, err := r.Register(context.Background(), "agent-1", "Agent One", map[string]any{"provider": "openai"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sub, err := r.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", sub)

	info, ok := r.Agent("agent-1")
	require.True(t, ok)
	assert.Equal(t, "Agent One", info.DisplayName)
}

func TestDeregister_ReleasesHeldLocks(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Register(context.Background(), "agent-1", "", nil)
	require.NoError(t, err)

	require.Nil(t, r.AcquireFunctionLock(domain.FunctionId(1), "agent-1"))
	require.Nil(t, r.AcquireStructureLock("agent-1"))

	require.NoError(t, r.Deregister(context.Background(), "agent-1"))

	snap := r.Locks()
	assert.Empty(t, snap.FunctionLocks)
	assert.Empty(t, snap.StructureHolder)

	_, ok := r.Agent("agent-1")
	assert.False(t, ok)
}

func TestAcquireFunctionLock_ConflictsAcrossAgents(t *testing.T) {
	r := newTestRegistry(t)
	fid := domain.FunctionId(7)

	assert.Nil(t, r.AcquireFunctionLock(fid, "agent-a"))
	// re-acquiring as the same holder is a no-op success
	assert.Nil(t, r.AcquireFunctionLock(fid, "agent-a"))

	conflict := r.AcquireFunctionLock(fid, "agent-b")
	require.NotNil(t, conflict)
	assert.Equal(t, "lock_held", conflict.ConflictKind)
	assert.Equal(t, "agent-a", conflict.HolderAgentID)

	r.ReleaseFunctionLock(fid, "agent-a")
	assert.Nil(t, r.AcquireFunctionLock(fid, "agent-b"))
}

func TestAcquireStructureLock_ConflictsAcrossAgents(t *testing.T) {
	r := newTestRegistry(t)
	require.Nil(t, r.AcquireStructureLock("agent-a"))

	conflict := r.AcquireStructureLock("agent-b")
	require.NotNil(t, conflict)
	assert.Equal(t, "structure_lock_held", conflict.ConflictKind)

	r.ReleaseStructureLock("agent-a")
	assert.Nil(t, r.AcquireStructureLock("agent-b"))
}

func TestCheckFunctionWrite_NoAgentIDBypassesLock(t *testing.T) {
	r := newTestRegistry(t)
	fid := domain.FunctionId(3)
	require.Nil(t, r.AcquireFunctionLock(fid, "agent-a"))

	assert.Nil(t, r.CheckFunctionWrite(fid, "", false))

	conflict := r.CheckFunctionWrite(fid, "agent-b", true)
	require.NotNil(t, conflict)
	assert.Equal(t, "lock_held", conflict.ConflictKind)

	assert.Nil(t, r.CheckFunctionWrite(fid, "agent-a", true))
}

func TestResolveAgent_HeaderMustMatchTokenSubject(t *testing.T) {
	r := newTestRegistry(t)
	token, err := r.Register(context.Background(), "agent-1", "", nil)
	require.NoError(t, err)

	agentID, hasAgent, err := ResolveAgent(r, "agent-1", token)
	require.NoError(t, err)
	assert.True(t, hasAgent)
	assert.Equal(t, "agent-1", agentID)

	_, _, err = ResolveAgent(r, "agent-2", token)
	assert.Error(t, err)

	// no header, even with a valid token presented: non-agent path per spec.
	_, hasAgent, err = ResolveAgent(r, "", token)
	require.NoError(t, err)
	assert.False(t, hasAgent)
}
