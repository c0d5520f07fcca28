package interpreter

import (
	"fmt"
	"io"
	"sort"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// Status is the interpreter's run state (spec.md §4.2:
// Running/Completed/Failed/ContractViolation).
type Status string

const (
	StatusRunning           Status = "running"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusContractViolation Status = "contract_violation"
)

// TraceEntry is one append-only trace record (spec.md §4.2:
// "(node_id, op_summary, inputs, output)").
type TraceEntry struct {
	NodeID    domain.NodeId
	OpSummary string
	Inputs    []Value
	Output    Value
}

// Result is the outcome of a completed interpreter run.
type Result struct {
	Status    Status
	Value     Value
	Err       error
	Violation *derr.ContractInfo
	Trace     []TraceEntry
	Steps     int
}

// Options configures a single interpreter run. The zero value is usable:
// unbounded trace becomes DefaultTraceCap-bounded and step budget becomes
// DefaultStepBudget.
type Options struct {
	TraceCap   int
	StepBudget int
	Stdout     io.Writer
}

const (
	DefaultTraceCap   = 4096
	DefaultStepBudget = 100_000
)

// Interpreter evaluates one function call: args bind to OpParameter nodes by
// index, Captures bind to OpCaptureAccess nodes by index (set only when the
// call originates from an IndirectCall on a closure).
type Interpreter struct {
	g    *domain.ProgramGraph
	fid  domain.FunctionId
	fn   *domain.FunctionDef
	args []Value
	caps []Value

	values map[domain.NodeId]Value
	branch map[domain.NodeId]uint64 // chosen outgoing control edge for branching ops
	traced map[domain.NodeId]bool

	memory []Value

	trace    []TraceEntry
	traceCap int

	steps      int
	stepBudget int

	stdout io.Writer

	finished  bool
	result    Value
	violation *derr.ContractInfo
	failErr   error
}

// New creates an interpreter bound to fid with the given argument values.
func New(g *domain.ProgramGraph, fid domain.FunctionId, args []Value, opts Options) (*Interpreter, error) {
	fn, ok := g.Functions[fid]
	if !ok || fn.Retired() {
		return nil, derr.NewInternal(fmt.Errorf("unknown function %d", fid))
	}
	traceCap := opts.TraceCap
	if traceCap <= 0 {
		traceCap = DefaultTraceCap
	}
	stepBudget := opts.StepBudget
	if stepBudget <= 0 {
		stepBudget = DefaultStepBudget
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	return &Interpreter{
		g: g, fid: fid, fn: fn, args: args,
		values:     make(map[domain.NodeId]Value),
		branch:     make(map[domain.NodeId]uint64),
		traced:     make(map[domain.NodeId]bool),
		traceCap:   traceCap,
		stepBudget: stepBudget,
		stdout:     stdout,
	}, nil
}

// WithCaptures binds capture values for a call reached via IndirectCall on a
// closure (spec.md's Closure value carries {target, captures}).
func (it *Interpreter) WithCaptures(caps []Value) *Interpreter {
	it.caps = caps
	return it
}

// Run drives the interpreter to completion, a contract violation, a runtime
// failure, or step-budget exhaustion (spec.md §5 "soft step limit").
func (it *Interpreter) Run() Result {
	if !it.fn.HasEntry {
		return Result{Status: StatusFailed, Err: fmt.Errorf("function %d has no entry node", it.fid), Trace: it.trace, Steps: it.steps}
	}

	cur := it.fn.EntryNode
	var arrivedVia *uint64

	for {
		if it.steps >= it.stepBudget {
			err := &derr.StepLimitExceeded{Steps: it.steps}
			return Result{Status: StatusFailed, Err: err, Trace: it.trace, Steps: it.steps}
		}
		it.steps++

		if _, err := it.eval(cur, arrivedVia); err != nil {
			return Result{Status: StatusFailed, Err: err, Trace: it.trace, Steps: it.steps}
		}

		if it.finished {
			if it.violation != nil {
				return Result{Status: StatusContractViolation, Violation: it.violation, Trace: it.trace, Steps: it.steps}
			}
			if it.failErr != nil {
				return Result{Status: StatusFailed, Err: it.failErr, Trace: it.trace, Steps: it.steps}
			}
			return Result{Status: StatusCompleted, Value: it.result, Trace: it.trace, Steps: it.steps}
		}

		next, edgeID, ok := it.nextControl(cur)
		if !ok {
			return Result{Status: StatusFailed, Err: fmt.Errorf("node %d has no outgoing control edge and did not terminate", cur), Trace: it.trace, Steps: it.steps}
		}
		cur = next
		e := edgeID
		arrivedVia = &e
	}
}

// nextControl returns the control successor of cur: the branch-chosen edge
// for branching ops, or the sole outgoing control edge otherwise.
func (it *Interpreter) nextControl(cur domain.NodeId) (domain.NodeId, uint64, bool) {
	if eid, ok := it.branch[cur]; ok {
		e, ok := it.g.GetFlowEdge(eid)
		if !ok {
			return 0, 0, false
		}
		return e.Target, eid, true
	}
	for _, eid := range it.g.OutgoingEdges(cur) {
		e, ok := it.g.GetFlowEdge(eid)
		if ok && e.Kind == domain.FlowControl {
			return e.Target, eid, true
		}
	}
	return 0, 0, false
}

// eval computes (and memoizes) the value of id, executing any side effects
// and recording a trace entry the first time id is visited. arrivedVia is
// the control edge used to reach id this step, needed only for Phi
// resolution.
func (it *Interpreter) eval(id domain.NodeId, arrivedVia *uint64) (Value, error) {
	if v, ok := it.values[id]; ok {
		return v, nil
	}
	n, ok := it.g.GetComputeNode(id)
	if !ok {
		return Value{}, fmt.Errorf("node %d does not exist", id)
	}
	op := n.Op

	v, err := it.evalOp(id, op, arrivedVia)
	if err != nil {
		return Value{}, err
	}

	it.values[id] = v
	it.recordTrace(id, op, v)
	return v, nil
}

func (it *Interpreter) recordTrace(id domain.NodeId, op domain.ComputeNodeOp, out Value) {
	if it.traced[id] || len(it.trace) >= it.traceCap {
		return
	}
	it.traced[id] = true
	it.trace = append(it.trace, TraceEntry{
		NodeID:    id,
		OpSummary: string(op.Tag),
		Inputs:    it.operandValues(id),
		Output:    out,
	})
}

// operandValues returns the already-evaluated values of id's incoming data
// edges, ordered by target port, for trace reporting only.
func (it *Interpreter) operandValues(id domain.NodeId) []Value {
	edges := it.g.IncomingDataEdges(id)
	sort.Slice(edges, func(i, j int) bool { return edges[i].TargetPort < edges[j].TargetPort })
	out := make([]Value, 0, len(edges))
	for _, e := range edges {
		if v, ok := it.values[e.Source]; ok {
			out = append(out, v)
		}
	}
	return out
}

// operand evaluates and returns the value feeding id at data port idx.
func (it *Interpreter) operand(id domain.NodeId, idx uint32) (Value, error) {
	edges := it.g.IncomingDataEdges(id)
	for _, e := range edges {
		if e.TargetPort == idx {
			return it.eval(e.Source, nil)
		}
	}
	return Value{}, fmt.Errorf("node %d has no data input at port %d", id, idx)
}

func (it *Interpreter) allOperands(id domain.NodeId) ([]Value, error) {
	edges := it.g.IncomingDataEdges(id)
	sort.Slice(edges, func(i, j int) bool { return edges[i].TargetPort < edges[j].TargetPort })
	out := make([]Value, len(edges))
	for i, e := range edges {
		v, err := it.eval(e.Source, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
