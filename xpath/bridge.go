package xpath

import (
	"github.com/midbel/xslt/xml"
)

// FindWithContext evaluates in like Evaluator.Find but binds the query's
// context size and proximity position before evaluation, so that a
// top-level select/test expression (not just a nested path step) sees
// the caller's position()/last() rather than the evaluator's default
// of size=1, position=1.
func (e *Evaluator) FindWithContext(in string, node xml.Node, position, size int) (Sequence, error) {
	expr, err := e.Create(in)
	if err != nil {
		return nil, err
	}
	q, ok := expr.(query)
	if !ok {
		return expr.Find(node)
	}
	ctx := q.ctx.Sub(node, position, size)
	return q.find(ctx)
}
