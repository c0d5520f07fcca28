package domain

// Visibility controls whether a function is reachable from outside its
// owning module.
type Visibility string

const (
	VisPublic  Visibility = "public"
	VisPrivate Visibility = "private"
)

// FunctionDef is the semantic signature of a function; its body lives as
// ComputeNodes owned by the same FunctionId in the compute graph.
type FunctionDef struct {
	ID         FunctionId
	Name       string
	Module     ModuleId
	Visibility Visibility
	Params     []TypeId
	Return     TypeId
	EntryNode  NodeId
	HasEntry   bool
	Captures   []NodeId

	retired bool
}

// Retired reports whether this function has been logically removed.
func (f *FunctionDef) Retired() bool { return f.retired }

// ModuleDef is a node in the hierarchical module tree. Visibility is
// evaluated per module: a private function is reachable only from within
// its own module subtree.
type ModuleDef struct {
	ID     ModuleId
	Name   string
	Parent ModuleId
	HasParent bool
	Children  []ModuleId

	retired bool
}

// Retired reports whether this module has been logically removed.
func (m *ModuleDef) Retired() bool { return m.retired }

// Path returns the dotted module path from the root to this module, given
// a lookup function for ancestors (the ProgramGraph supplies one).
func (m *ModuleDef) Path(lookup func(ModuleId) (ModuleDef, bool)) []string {
	var segs []string
	cur := *m
	for {
		segs = append([]string{cur.Name}, segs...)
		if !cur.HasParent {
			break
		}
		parent, ok := lookup(cur.Parent)
		if !ok {
			break
		}
		cur = parent
	}
	return segs
}
