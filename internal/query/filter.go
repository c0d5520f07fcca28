package query

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	derr "lmlang/internal/domain/errors"
)

// filterEvaluator compiles and caches search_nodes boolean filter
// expressions: a filter string is compiled at most once per process, then
// reused for every node it's tested against.
type filterEvaluator struct {
	mu       sync.RWMutex
	compiled map[string]*vm.Program
}

func newFilterEvaluator() *filterEvaluator {
	return &filterEvaluator{compiled: make(map[string]*vm.Program)}
}

// compile returns the cached program for filterExpr, compiling it on first
// use. A node's projected fields (op, owner, function_name, module_path,
// summary, retired) are the expression's environment.
func (fe *filterEvaluator) compile(filterExpr string) (*vm.Program, error) {
	fe.mu.RLock()
	p, ok := fe.compiled[filterExpr]
	fe.mu.RUnlock()
	if ok {
		return p, nil
	}

	env := map[string]any{
		"op":            "",
		"owner":         int64(0),
		"function_name": "",
		"module_path":   "",
		"summary":       "",
		"retired":       false,
	}
	p, err := expr.Compile(filterExpr, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, &derr.BadRequest{Message: fmt.Sprintf("search_nodes: invalid filter %q: %v", filterExpr, err)}
	}

	fe.mu.Lock()
	fe.compiled[filterExpr] = p
	fe.mu.Unlock()
	return p, nil
}

// matches evaluates filterExpr against env, returning false (not an error)
// only when the compiled filter itself fails to run against this env — that
// happens for filters that reference a field a particular node doesn't
// carry (e.g. function_name on a module-owned node), and excluding the node
// is the correct outcome rather than aborting the whole search.
func (fe *filterEvaluator) matches(filterExpr string, env map[string]any) (bool, error) {
	program, err := fe.compile(filterExpr)
	if err != nil {
		return false, err
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, nil
	}
	b, ok := result.(bool)
	return ok && b, nil
}
