// Package concurrency implements the Concurrency Registry (spec.md §4.9,
// C9): agent self-registration, per-function body-write locks, and the
// global structure lock required by AddFunction/AddModule.
package concurrency

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/puzpuzpuz/xsync/v3"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// AgentInfo is the in-memory view of a self-registered agent.
type AgentInfo struct {
	ID             string
	DisplayName    string
	ProviderConfig map[string]any
	RegisteredAt   time.Time
}

type lockState struct {
	HolderAgentID string
	AcquiredAt    time.Time
}

// Registry tracks agents and locks. Lookups go through xsync's lock-free
// maps so read-mostly, high-fanout lock-status queries never contend with
// registration or lock acquisition, since many agents may poll lock status
// at once. Lock *acquisition* still serializes per function/structure key,
// so linearizability of commits is unaffected — only the read side gets
// faster.
type Registry struct {
	agents    *xsync.MapOf[string, AgentInfo]
	funcLocks *xsync.MapOf[domain.FunctionId, lockState]

	structMu      sync.Mutex
	structureLock *lockState

	store     domain.GraphStore // optional; nil is valid (no persistence)
	jwtSecret []byte
}

// NewRegistry creates an empty registry. store may be nil, in which case
// agent registrations are process-local only.
func NewRegistry(jwtSecret []byte, store domain.GraphStore) *Registry {
	return &Registry{
		agents:    xsync.NewMapOf[string, AgentInfo](),
		funcLocks: xsync.NewMapOf[domain.FunctionId, lockState](),
		store:     store,
		jwtSecret: jwtSecret,
	}
}

// Register self-registers an agent and returns a signed token embedding
// its id and display name (spec.md §4.9's "agents self-register").
func (r *Registry) Register(ctx context.Context, id, displayName string, providerConfig map[string]any) (string, error) {
	if id == "" {
		return "", &derr.BadRequest{Message: "register: agent id required"}
	}
	info := AgentInfo{ID: id, DisplayName: displayName, ProviderConfig: providerConfig, RegisteredAt: time.Now()}
	r.agents.Store(id, info)

	token, err := r.issueToken(info)
	if err != nil {
		return "", derr.NewInternal(err)
	}

	if r.store != nil {
		sum := sha256.Sum256([]byte(token))
		cfg := domain.AgentConfig{ID: id, DisplayName: displayName, ProviderConfig: providerConfig, TokenHash: hex.EncodeToString(sum[:])}
		if err := r.store.SaveAgentConfig(ctx, cfg); err != nil {
			return "", derr.NewInternal(err)
		}
	}
	return token, nil
}

// Deregister removes an agent and releases every lock it holds (spec.md
// §4.9 "deregistration invalidates held locks").
func (r *Registry) Deregister(ctx context.Context, id string) error {
	r.agents.Delete(id)
	r.funcLocks.Range(func(fid domain.FunctionId, st lockState) bool {
		if st.HolderAgentID == id {
			r.funcLocks.Delete(fid)
		}
		return true
	})
	r.structMu.Lock()
	if r.structureLock != nil && r.structureLock.HolderAgentID == id {
		r.structureLock = nil
	}
	r.structMu.Unlock()

	if r.store != nil {
		return r.store.DeleteAgentConfig(ctx, id)
	}
	return nil
}

// Agent looks up a registered agent by id.
func (r *Registry) Agent(id string) (AgentInfo, bool) { return r.agents.Load(id) }

// Agents lists every registered agent, ordered by id for stable output.
func (r *Registry) Agents() []AgentInfo {
	out := make([]AgentInfo, 0)
	r.agents.Range(func(_ string, v AgentInfo) bool { out = append(out, v); return true })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AcquireFunctionLock grants agentID the exclusive body-write lock on fid,
// or reports a conflict if another agent already holds it. Re-acquiring a
// lock already held by the same agent is a no-op success.
func (r *Registry) AcquireFunctionLock(fid domain.FunctionId, agentID string) *derr.ConflictWithDetails {
	actual, loaded := r.funcLocks.LoadOrStore(fid, lockState{HolderAgentID: agentID, AcquiredAt: time.Now()})
	if loaded && actual.HolderAgentID != agentID {
		return &derr.ConflictWithDetails{ConflictKind: "lock_held", FunctionID: fmt.Sprint(fid), HolderAgentID: actual.HolderAgentID}
	}
	return nil
}

// ReleaseFunctionLock releases fid's body-write lock if agentID holds it.
func (r *Registry) ReleaseFunctionLock(fid domain.FunctionId, agentID string) {
	if st, ok := r.funcLocks.Load(fid); ok && st.HolderAgentID == agentID {
		r.funcLocks.Delete(fid)
	}
}

// AcquireStructureLock grants agentID the global structure lock required
// for AddFunction/AddModule (spec.md §4.9).
func (r *Registry) AcquireStructureLock(agentID string) *derr.ConflictWithDetails {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	if r.structureLock != nil && r.structureLock.HolderAgentID != agentID {
		return &derr.ConflictWithDetails{ConflictKind: "structure_lock_held", HolderAgentID: r.structureLock.HolderAgentID}
	}
	r.structureLock = &lockState{HolderAgentID: agentID, AcquiredAt: time.Now()}
	return nil
}

// ReleaseStructureLock releases the structure lock if agentID holds it.
func (r *Registry) ReleaseStructureLock(agentID string) {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	if r.structureLock != nil && r.structureLock.HolderAgentID == agentID {
		r.structureLock = nil
	}
}

// LockSnapshot describes the current lock table for a status query.
type LockSnapshot struct {
	StructureHolder string
	FunctionLocks   map[domain.FunctionId]string
}

// Locks returns a point-in-time view of held locks.
func (r *Registry) Locks() LockSnapshot {
	snap := LockSnapshot{FunctionLocks: make(map[domain.FunctionId]string)}
	r.funcLocks.Range(func(fid domain.FunctionId, st lockState) bool {
		snap.FunctionLocks[fid] = st.HolderAgentID
		return true
	})
	r.structMu.Lock()
	if r.structureLock != nil {
		snap.StructureHolder = r.structureLock.HolderAgentID
	}
	r.structMu.Unlock()
	return snap
}

// CheckFunctionWrite enforces the per-function lock for a mutation
// affecting fid. Absent an agent id, the non-agent (single-writer) path
// applies and no check is made (spec.md §4.9).
func (r *Registry) CheckFunctionWrite(fid domain.FunctionId, agentID string, hasAgent bool) *derr.ConflictWithDetails {
	if !hasAgent {
		return nil
	}
	if st, ok := r.funcLocks.Load(fid); ok && st.HolderAgentID != agentID {
		return &derr.ConflictWithDetails{ConflictKind: "lock_held", FunctionID: fmt.Sprint(fid), HolderAgentID: st.HolderAgentID}
	}
	return nil
}

// CheckStructureWrite enforces the global structure lock for
// AddFunction/AddModule. Absent an agent id, the non-agent path applies.
func (r *Registry) CheckStructureWrite(agentID string, hasAgent bool) *derr.ConflictWithDetails {
	if !hasAgent {
		return nil
	}
	r.structMu.Lock()
	defer r.structMu.Unlock()
	if r.structureLock != nil && r.structureLock.HolderAgentID != agentID {
		return &derr.ConflictWithDetails{ConflictKind: "structure_lock_held", HolderAgentID: r.structureLock.HolderAgentID}
	}
	return nil
}

// jwtClaims embeds the agent id and display name alongside the standard
// registered claims.
type jwtClaims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"display_name"`
}

func (r *Registry) issueToken(info AgentInfo) (string, error) {
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   info.ID,
			IssuedAt:  jwt.NewNumericDate(info.RegisteredAt),
			NotBefore: jwt.NewNumericDate(info.RegisteredAt),
		},
		DisplayName: info.DisplayName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.jwtSecret)
}

// ValidateToken parses and verifies a bearer token, returning the agent id
// it names (the token's subject).
func (r *Registry) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

// ResolveAgent implements spec.md §4.9's AMBIENT addition: the X-Agent-Id
// header gates lock enforcement, not the bearer token. A present header is
// the agent path regardless of whether a token was also presented; a
// presented token's subject must match the header when both are given.
func ResolveAgent(r *Registry, headerAgentID, bearerToken string) (agentID string, hasAgent bool, err error) {
	if bearerToken != "" {
		sub, verr := r.ValidateToken(bearerToken)
		if verr != nil {
			return "", false, verr
		}
		if headerAgentID != "" && headerAgentID != sub {
			return "", false, &derr.BadRequest{Message: "X-Agent-Id does not match bearer token subject"}
		}
	}
	if headerAgentID == "" {
		return "", false, nil
	}
	return headerAgentID, true, nil
}

// NewSecret generates a random HMAC secret, for deployments that don't
// supply one via configuration.
func NewSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
