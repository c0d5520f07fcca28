// Package propagation implements the Propagation Engine (spec.md §4.6,
// C7): the deterministic flush algorithm that keeps the semantic and
// compute layers of a ProgramGraph consistent.
package propagation

import (
	"context"
	"sort"
	"sync"

	"lmlang/internal/domain"
	derr "lmlang/internal/domain/errors"
)

// EmbeddingRefresher produces an embedding vector for a semantic text
// payload. It is invoked only from the EmbeddingInvalidated transform
// (spec.md §4.6 step 4, §9) — never from the mutation commit path. Awaiting
// an external embedding provider during flush is an explicitly permitted
// suspension point (spec.md §5); a refresher that cannot answer quickly is
// expected to honor ctx's deadline and return its error rather than block
// the flush indefinitely.
type EmbeddingRefresher interface {
	Embed(ctx context.Context, text string) (vector []float32, model string, err error)
}

// FlushReport summarizes one drain of the propagation queue.
type FlushReport struct {
	Processed              int
	Applied                int
	Skipped                int
	RefreshedSemanticNodes []domain.SemNodeIdx
	Diagnostics            []derr.Diagnostic
}

type signature struct {
	Kind   domain.EventKind
	Target domain.FunctionId
}

// Engine is a stateful flush driver: it remembers every event id it has
// ever seen (across flush calls) so the loop guard can recognize a
// (kind, primary_target) pair recurring in an event's lineage.
type Engine struct {
	mu   sync.Mutex
	seen map[uint64]signature

	refresher EmbeddingRefresher
}

// NewEngine creates an empty propagation engine.
func NewEngine() *Engine {
	return &Engine{seen: make(map[uint64]signature)}
}

// WithEmbeddingRefresher attaches the out-of-process embedding provider
// (SPEC_FULL.md A5). Optional: an engine with none leaves every invalidated
// embedding dirty, which is never an error (spec.md §9).
func (eng *Engine) WithEmbeddingRefresher(r EmbeddingRefresher) *Engine {
	eng.refresher = r
	return eng
}

// Flush drains g's propagation queue under a single pass: snapshot, sort
// by (priority class, seq), resolve same-attribute conflicts, apply the
// loop guard, then run each event's downward or upward transform
// (spec.md §4.6 steps 1-6).
func (eng *Engine) Flush(ctx context.Context, g *domain.ProgramGraph) FlushReport {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	events := g.Queue.Snapshot()
	if len(events) == 0 {
		return FlushReport{}
	}
	for _, ev := range events {
		eng.seen[ev.ID] = signature{ev.Kind, ev.PrimaryTarget()}
	}

	sort.SliceStable(events, func(i, j int) bool {
		pi, pj := events[i].Kind.PriorityClass(), events[j].Kind.PriorityClass()
		if pi != pj {
			return pi < pj
		}
		return events[i].Seq < events[j].Seq
	})

	report := FlushReport{Processed: len(events)}
	winners, conflictDiags := resolveConflicts(events)
	report.Diagnostics = append(report.Diagnostics, conflictDiags...)

	refreshed := map[domain.SemNodeIdx]bool{}
	var followUps []domain.Event

	for i, ev := range events {
		if !winners[i] {
			report.Skipped++
			continue
		}
		if eng.loopCount(ev) >= 2 {
			report.Diagnostics = append(report.Diagnostics, derr.Diagnostic{
				Severity:   derr.SeverityWarning,
				Code:       derr.CodePropagationSuppressed,
				Message:    "event kind recurred in its own lineage; propagation suppressed",
				FunctionID: fnPtr(ev.FunctionID),
			})
			report.Skipped++
			continue
		}

		applied, touched, follow, diag := eng.applyTransform(ctx, g, ev)
		if diag != nil {
			report.Diagnostics = append(report.Diagnostics, *diag)
		}
		if !applied {
			report.Skipped++
			continue
		}
		report.Applied++
		for _, idx := range touched {
			refreshed[idx] = true
		}
		for _, f := range follow {
			f.Lineage = append(append([]uint64{}, ev.Lineage...), ev.ID)
			followUps = append(followUps, g.Queue.Enqueue(f))
		}
	}

	for idx := range refreshed {
		report.RefreshedSemanticNodes = append(report.RefreshedSemanticNodes, idx)
	}
	sort.Slice(report.RefreshedSemanticNodes, func(i, j int) bool {
		return report.RefreshedSemanticNodes[i] < report.RefreshedSemanticNodes[j]
	})
	for _, f := range followUps {
		eng.seen[f.ID] = signature{f.Kind, f.PrimaryTarget()}
	}
	return report
}

func (eng *Engine) loopCount(e domain.Event) int {
	self := signature{e.Kind, e.PrimaryTarget()}
	count := 0
	for _, id := range e.Lineage {
		if sig, ok := eng.seen[id]; ok && sig == self {
			count++
		}
	}
	return count
}

func fnPtr(v domain.FunctionId) *uint64 { x := uint64(v); return &x }

// conflictKey groups events targeting the same attribute of the same
// function — spec.md §4.6 step 6's "same attribute of the same entity".
type conflictKey struct {
	Fn   domain.FunctionId
	Attr string
}

// resolveConflicts picks, for every conflict group, the event with the
// highest-precedence kind; ties are broken by origin layer per the
// attribute-specific precedence table. Unresolved ties leave the whole
// group unapplied and emit a diagnostic.
func resolveConflicts(events []domain.Event) (map[int]bool, []derr.Diagnostic) {
	winners := make(map[int]bool, len(events))
	for i := range events {
		winners[i] = true
	}

	groups := map[conflictKey][]int{}
	for i, e := range events {
		if e.Attribute == "" {
			continue
		}
		k := conflictKey{e.FunctionID, e.Attribute}
		groups[k] = append(groups[k], i)
	}

	var diags []derr.Diagnostic
	for k, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		best, tie := pickHighestPrecedence(events, idxs)
		if tie {
			resolved, ok := breakTieByOrigin(events, idxs, k.Attr)
			if !ok {
				diags = append(diags, derr.Diagnostic{
					Severity:   derr.SeverityWarning,
					Code:       derr.CodeUnresolvedConflict,
					Message:    "unresolved propagation conflict on attribute " + k.Attr,
					FunctionID: fnPtr(k.Fn),
				})
				for _, i := range idxs {
					winners[i] = false
				}
				continue
			}
			best = resolved
		}
		for _, i := range idxs {
			winners[i] = i == best
		}
	}
	return winners, diags
}

func pickHighestPrecedence(events []domain.Event, idxs []int) (best int, tie bool) {
	best = idxs[0]
	for _, i := range idxs[1:] {
		pi, pb := events[i].Kind.PriorityClass(), events[best].Kind.PriorityClass()
		switch {
		case pi < pb:
			best = i
			tie = false
		case pi == pb:
			tie = true
		}
	}
	return best, tie
}

// breakTieByOrigin applies spec.md §4.6 step 6's fixed precedence table:
// Semantic origin wins for signature/contract, Compute origin wins for
// summary/relationship/complexity.
func breakTieByOrigin(events []domain.Event, idxs []int, attribute string) (int, bool) {
	var want domain.OriginLayer
	switch attribute {
	case "signature", "contract":
		want = domain.OriginSemantic
	case "summary", "relationship", "complexity", "body":
		want = domain.OriginCompute
	default:
		return 0, false
	}
	found, count := -1, 0
	for _, i := range idxs {
		if events[i].OriginLayer == want {
			found = i
			count++
		}
	}
	if count == 1 {
		return found, true
	}
	return 0, false
}

// applyTransform dispatches ev to its downward (Semantic->Compute) or
// upward (Compute->Semantic) transform, returning whether it had an
// effect, which semantic nodes it touched, and any follow-up events it
// produces (lineage is stamped by the caller).
func (eng *Engine) applyTransform(ctx context.Context, g *domain.ProgramGraph, ev domain.Event) (applied bool, touched []domain.SemNodeIdx, followUps []domain.Event, diag *derr.Diagnostic) {
	switch ev.Kind {
	case domain.EventFunctionAdded:
		applied = expandFunctionScaffold(g, ev.FunctionID)
		return applied, nil, nil, nil

	case domain.EventSignatureChanged:
		applied = rewriteSignature(g, ev)
		return applied, nil, nil, nil

	case domain.EventContractAdded:
		applied, d := downwardContractAdded(g, ev)
		return applied, nil, nil, d

	case domain.EventBodyEdited, domain.EventRelationshipChanged, domain.EventSummaryRecomputeRequested:
		idx, ok := recomputeFunctionSummary(g, ev.FunctionID)
		if !ok {
			return false, nil, nil, nil
		}
		var followUps []domain.Event
		if sem, ok := g.GetSemanticNode(idx); ok && sem.Embedding != nil && sem.Embedding.Dirty {
			followUps = append(followUps, domain.Event{
				OriginLayer: domain.OriginCompute,
				Kind:        domain.EventEmbeddingInvalidated,
				FunctionID:  ev.FunctionID,
				Attribute:   "embedding",
			})
		}
		return true, []domain.SemNodeIdx{idx}, followUps, nil

	case domain.EventEmbeddingInvalidated:
		return eng.refreshEmbedding(ctx, g, ev)
	}
	return false, nil, nil, nil
}

// refreshEmbedding calls the attached EmbeddingRefresher, if any, for the
// function's semantic summary text and stores the resulting vector. Absent
// a refresher, or on a refresher error, the embedding is left dirty and the
// event still counts as applied — invalidation itself is the durable record
// (spec.md §9: embedding absence is never an error).
func (eng *Engine) refreshEmbedding(ctx context.Context, g *domain.ProgramGraph, ev domain.Event) (bool, []domain.SemNodeIdx, []domain.Event, *derr.Diagnostic) {
	if eng.refresher == nil {
		return true, nil, nil, nil
	}
	semIdx, ok := g.FunctionSemanticNodes[ev.FunctionID]
	if !ok {
		return false, nil, nil, nil
	}
	sem, ok := g.GetSemanticNode(semIdx)
	if !ok {
		return false, nil, nil, nil
	}

	text := sem.Summary
	if text == "" {
		if fn, ok := g.Functions[ev.FunctionID]; ok {
			text = fn.Name
		}
	}

	vector, model, err := eng.refresher.Embed(ctx, text)
	if err != nil {
		return true, nil, nil, &derr.Diagnostic{
			Severity:   derr.SeverityWarning,
			Code:       derr.CodePropagationSuppressed,
			Message:    "embedding provider unavailable, left dirty: " + err.Error(),
			FunctionID: fnPtr(ev.FunctionID),
		}
	}

	sem.Embedding = &domain.Embedding{Vector: vector, Model: model, Dirty: false}
	g.SetSemanticNode(semIdx, sem)
	return true, []domain.SemNodeIdx{semIdx}, nil, nil
}
