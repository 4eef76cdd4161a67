package graph

import "fmt"

// ConfigSource is implemented by the external declarative-expression parser
// (out of scope per spec §1/§6). GraphRuntime only consumes this interface;
// the DSL grammar itself is never implemented here.
type ConfigSource interface {
	// Resolve looks up a dotted variable path rooted at "argv" or "env".
	Resolve(path string) (any, error)
	// Nodes returns every node-constructor invocation the expression
	// declared, in declaration order.
	Nodes() []NodeSpec
	// Edges returns every producer->consumer connection the expression
	// declared, as indices into Nodes().
	Edges() []EdgeSpec
}

// NodeSpec describes one node-constructor invocation.
type NodeSpec struct {
	Type       string
	Options    map[string]any
	Positional []any
}

// EdgeSpec connects the node at index From to the node at index To.
type EdgeSpec struct {
	From, To int
}

// ErrDSLUnavailable is returned for configuration sources this module
// cannot parse on its own (an inline expression or expression file: the
// expression grammar is an external collaborator, spec §12).
var ErrDSLUnavailable = fmt.Errorf("graph: expression DSL is not implemented by this module")

// LiteralSource is the minimal ConfigSource implementation this module
// provides: a pre-built node/edge list, standing in for what a real DSL's
// AST walk would have produced. It is the seam the external parser plugs
// into, not a replacement for it.
type LiteralSource struct {
	NodeList []NodeSpec
	EdgeList []EdgeSpec
	Vars     map[string]any
}

// Resolve looks up path in Vars, or returns an error if absent.
func (l *LiteralSource) Resolve(path string) (any, error) {
	v, ok := l.Vars[path]
	if !ok {
		return nil, fmt.Errorf("graph: unresolved variable %q", path)
	}
	return v, nil
}

// Nodes returns NodeList.
func (l *LiteralSource) Nodes() []NodeSpec { return l.NodeList }

// Edges returns EdgeList.
func (l *LiteralSource) Edges() []EdgeSpec { return l.EdgeList }
