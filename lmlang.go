// Package lmlang is this module's public facade: the types and
// constructors a caller embedding the dual-layer program graph needs
// without reaching into internal/* directly. It re-exports the domain
// graph, the mutation/query/propagation/interpreter/contract services, the
// concurrency registry, and the storage/transport/config/logger adapters
// as one flat top-level surface.
package lmlang

import (
	"github.com/rs/zerolog"

	"lmlang/internal/application/contract"
	"lmlang/internal/application/mutation"
	"lmlang/internal/application/propagation"
	"lmlang/internal/concurrency"
	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
	"lmlang/internal/infrastructure/config"
	"lmlang/internal/infrastructure/embedding"
	"lmlang/internal/infrastructure/logger"
	"lmlang/internal/infrastructure/storage"
	"lmlang/internal/infrastructure/websocket"
	"lmlang/internal/interpreter"
	"lmlang/internal/query"
	"lmlang/internal/typecheck"
)

// Graph types.
type (
	ProgramGraph  = domain.ProgramGraph
	NodeId        = domain.NodeId
	FunctionId    = domain.FunctionId
	ModuleId      = domain.ModuleId
	SemNodeIdx    = domain.SemNodeIdx
	TypeId        = domain.TypeId
	ComputeNodeOp = domain.ComputeNodeOp
	FlowEdge      = domain.FlowEdge
	FunctionDef   = domain.FunctionDef
	ModuleDef     = domain.ModuleDef
)

// NewProgram allocates an empty ProgramGraph, the starting point for every
// mutation batch.
func NewProgram(id string) *ProgramGraph { return domain.NewProgramGraph(id) }

// Persistence.
type (
	GraphStore        = domain.GraphStore
	DecomposedProgram = domain.DecomposedProgram
	Checkpoint        = domain.Checkpoint
)

// NewMemoryStore returns an in-process GraphStore, suitable for tests and
// the zero-config default deployment (config.Config.IsMemoryBackend).
func NewMemoryStore() *storage.MemoryStore { return storage.NewMemoryStore() }

// NewBunStore returns a GraphStore backed by a SQL database reachable at
// dsn, selected whenever config.Config.DataPath names a real connection
// string instead of the memory:// sentinel.
func NewBunStore(dsn string) *storage.BunStore { return storage.NewBunStore(dsn) }

// Mutation.
type (
	MutationService     = mutation.Service
	EditCommand         = mutation.EditCommand
	EditKind            = mutation.Kind
	ProposeEditRequest  = mutation.ProposeEditRequest
	ProposeEditResponse = mutation.ProposeEditResponse
	CreatedEntity       = mutation.CreatedEntity
)

const (
	AddNode           = mutation.AddNode
	RemoveNode        = mutation.RemoveNode
	ModifyOp          = mutation.ModifyOp
	AddDataEdge       = mutation.AddDataEdge
	RemoveDataEdge    = mutation.RemoveDataEdge
	AddControlEdge    = mutation.AddControlEdge
	RemoveControlEdge = mutation.RemoveControlEdge
	AddFunction       = mutation.AddFunction
	RemoveFunction    = mutation.RemoveFunction
	AddModule         = mutation.AddModule
	RemoveModule      = mutation.RemoveModule
	AddContract       = mutation.AddContract
	AttachEmbedding   = mutation.AttachEmbedding
)

// NewMutationService wires a MutationService over g, with no concurrency
// checks until WithLocks is called on the result.
func NewMutationService(g *ProgramGraph) *MutationService { return mutation.NewService(g) }

// Query.
type (
	QueryService        = query.Service
	DetailLevel         = query.DetailLevel
	NodeView            = query.NodeView
	FunctionContextView = query.FunctionContextView
	NeighborhoodView    = query.NeighborhoodView
	OverviewView        = query.OverviewView
	SemanticView        = query.SemanticView
)

const (
	DetailSummary  = query.DetailSummary
	DetailStandard = query.DetailStandard
	DetailFull     = query.DetailFull
)

// NewQueryService wires a QueryService over g.
func NewQueryService(g *ProgramGraph) *QueryService { return query.NewService(g) }

// Propagation.
type (
	PropagationEngine  = propagation.Engine
	FlushReport        = propagation.FlushReport
	EmbeddingRefresher = embedding.Provider
)

// NewPropagationEngine wires an Engine with no embedding refresher; call
// WithEmbeddingRefresher on the result to enable AttachEmbedding flushes.
func NewPropagationEngine() *PropagationEngine { return propagation.NewEngine() }

// NewOpenAIEmbeddingRefresher wires an embedding.Provider backed by the
// OpenAI embeddings API.
func NewOpenAIEmbeddingRefresher(apiKey, model string) EmbeddingRefresher {
	return embedding.NewOpenAIProvider(apiKey, model)
}

// Interpreter and contracts.
type (
	Interpreter    = interpreter.Interpreter
	InterpretValue = interpreter.Value
	RunStatus      = interpreter.Status
	RunResult      = interpreter.Result
	RunOptions     = interpreter.Options
	TraceEntry     = interpreter.TraceEntry
)

const (
	StatusCompleted         = interpreter.StatusCompleted
	StatusError             = interpreter.StatusFailed
	StatusContractViolation = interpreter.StatusContractViolation
	StatusStepLimitExceeded = interpreter.StatusStepLimitExceeded
)

// NewInterpreter constructs an Interpreter ready to run fn with args.
func NewInterpreter(g *ProgramGraph, fn FunctionId, args []InterpretValue, opts RunOptions) (*Interpreter, error) {
	return interpreter.New(g, fn, args, opts)
}

type (
	ContractRequest = contract.Request
	ContractReport  = contract.Report
	ContractFailure = contract.Failure
)

// RunPropertyTest exercises fn against req's seed and random inputs,
// stopping at any contract violation or runtime failure.
func RunPropertyTest(g *ProgramGraph, req ContractRequest) (ContractReport, error) {
	return contract.Run(g, req)
}

// Verify runs the typechecker over fn and returns its diagnostics.
func Verify(g *ProgramGraph, fn FunctionId) []derr.Diagnostic {
	return typecheck.ValidateGraph(g, fn)
}

// Concurrency.
type (
	AgentRegistry = concurrency.Registry
	AgentInfo     = concurrency.AgentInfo
	LockSnapshot  = concurrency.LockSnapshot
)

// NewAgentRegistry wires a Registry over store, issuing agent tokens
// signed with jwtSecret.
func NewAgentRegistry(jwtSecret []byte, store GraphStore) *AgentRegistry {
	return concurrency.NewRegistry(jwtSecret, store)
}

// Notifications.
type NotificationHub = websocket.Hub

// NewNotificationHub allocates a Hub. Run must be started on it (typically
// `go hub.Run()`) before any program publishes to it.
func NewNotificationHub() *NotificationHub { return websocket.NewHub() }

// Config and logging.
type (
	Config         = config.Config
	BootstrapAgent = config.BootstrapAgent
)

// LoadConfig reads deployment configuration from the environment.
func LoadConfig() *Config { return config.Load() }

// LoadAgentBootstrap reads the agent roster named by Config.AgentsBootstrapFile.
func LoadAgentBootstrap(path string) ([]BootstrapAgent, error) {
	return config.LoadAgentBootstrap(path)
}

// SetupLogging installs level as the global zerolog level and returns a
// logger configured for it.
func SetupLogging(level string) zerolog.Logger { return logger.Setup(level) }

// Errors, re-exported so callers can type-switch on a MutationService or
// QueryService error without importing internal/domain/errors directly.
type (
	ValidationError      = derr.ValidationError
	ConflictWithDetails  = derr.ConflictWithDetails
	NotFoundError        = derr.NotFound
	BadRequestError      = derr.BadRequest
	ContractViolationErr = derr.ContractViolation
	StepLimitExceededErr = derr.StepLimitExceeded
	Diagnostic           = derr.Diagnostic
)
