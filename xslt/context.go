package xslt

import (
	"strings"

	"github.com/midbel/xslt/xml"
	"github.com/midbel/xslt/xpath"
)

// OutputMethod is the declared serialization method of the result
// document (§3, §4.1).
type OutputMethod string

const (
	MethodXML  OutputMethod = "xml"
	MethodHTML OutputMethod = "html"
	MethodText OutputMethod = "text"
)

// Context is the Transform Context of §3: the mutable state threaded
// through every instruction. Unlike the teacher's clone-based
// xslt.Context, every nested instruction mutates this value in place and
// restores it on every exit - see snapshot/restore below - matching the
// save-on-entry/restore-on-every-exit discipline §3 and §9 require.
//
// The var-stack (§3's var_stack, §6's "variable/parameter storage") is
// folded into Eval: xpath.Evaluator already owns a scoped
// environ.Environ[Expr] and a Sub() method that encloses a fresh scope
// over it, so pushing/popping a variable scope is just swapping Eval for
// Eval.Sub() and restoring the saved pointer.
type Context struct {
	Style *Stylesheet

	SourceDoc *xml.Document
	ResultDoc *xml.Document

	CurrentNode xml.Node

	NodeList          []xml.Node
	ContextSize       int
	ProximityPosition int

	InsertPoint xml.Node

	Eval *xpath.Evaluator

	OutputMethod OutputMethod
	ExtraDocs    map[string]*xml.Document

	// BaseDir resolves a relative document() argument against, once
	// document() is implemented; set from the CLI's -d flag today with
	// no reader yet behind it.
	BaseDir string

	Mode  string
	Depth int

	// StringSink, when non-nil, redirects what would otherwise become
	// result-tree text into a string buffer instead: the mechanism
	// behind evaluating an xsl:attribute's or xsl:comment's content,
	// which the grammar requires to collapse to a plain string (§4.10).
	StringSink *strings.Builder

	Tracer Tracer
}

// snapshot captures every field the spec requires to be restored across
// an instruction boundary (§3 invariants, §5, §9 "leaky error paths").
type snapshot struct {
	currentNode       xml.Node
	nodeList          []xml.Node
	contextSize       int
	proximityPosition int
	insertPoint       xml.Node
	eval              *xpath.Evaluator
	mode              string
	stringSink        *strings.Builder
}

func (ctx *Context) save() snapshot {
	return snapshot{
		currentNode:       ctx.CurrentNode,
		nodeList:          ctx.NodeList,
		contextSize:       ctx.ContextSize,
		proximityPosition: ctx.ProximityPosition,
		insertPoint:       ctx.InsertPoint,
		eval:              ctx.Eval,
		mode:              ctx.Mode,
		stringSink:        ctx.StringSink,
	}
}

// restore is meant to be deferred immediately after save, so that every
// exit path - success, a swallowed local error, or a panic - reverts the
// fields an instruction is not allowed to leak changes to, including any
// variable scope opened and never explicitly popped.
func (ctx *Context) restore(s snapshot) {
	ctx.CurrentNode = s.currentNode
	ctx.NodeList = s.nodeList
	ctx.ContextSize = s.contextSize
	ctx.ProximityPosition = s.proximityPosition
	ctx.InsertPoint = s.insertPoint
	ctx.Eval = s.eval
	ctx.Mode = s.mode
	ctx.StringSink = s.stringSink
}

// captureString runs body in a nested string-sink scope and returns the
// text it produced, used wherever the grammar requires content to
// collapse to a plain string (xsl:attribute, xsl:comment,
// xsl:processing-instruction).
func (ctx *Context) captureString(body []xml.Node) (string, error) {
	saved := ctx.save()
	defer ctx.restore(saved)

	var sink strings.Builder
	ctx.StringSink = &sink
	if err := ctx.executeBody(body); err != nil {
		return "", err
	}
	return sink.String(), nil
}

// pushScope opens a new, nested variable scope. The matching pop is just
// restoring ctx.Eval to what it was before, which a deferred restore of
// the enclosing save already does.
func (ctx *Context) pushScope() {
	ctx.Eval = ctx.Eval.Sub()
}

// define declares a variable or parameter in the current (innermost)
// scope.
func (ctx *Context) define(name string, expr xpath.Expr) {
	ctx.Eval.Set(name, expr)
}

// eval evaluates an XPath expression string in the current context,
// binding position()/last() to the Transform Context's own proximity
// position and context size via the xpath bridge.
func (ctx *Context) eval(expr string) (xpath.Sequence, error) {
	ctx.Tracer.Query(expr, qualifiedNameOf(ctx.CurrentNode))
	pos, size := ctx.ProximityPosition, ctx.ContextSize
	if size == 0 {
		pos, size = 1, 1
	}
	return ctx.Eval.FindWithContext(expr, ctx.CurrentNode, pos, size)
}

func (ctx *Context) evalString(expr string) (string, error) {
	seq, err := ctx.eval(expr)
	if err != nil {
		return "", err
	}
	return sequenceToString(seq)
}

func (ctx *Context) evalBool(expr string) (bool, error) {
	seq, err := ctx.eval(expr)
	if err != nil {
		return false, err
	}
	return seq.True(), nil
}

func qualifiedNameOf(node xml.Node) string {
	if node == nil {
		return ""
	}
	return node.QualifiedName()
}
