package xslt

import (
	"fmt"

	"github.com/midbel/xslt/xpath"
)

// registerBuiltins adds the handful of XPath functions XSLT itself adds
// on top of the core function library (§4.9). id(), key() and
// document() are explicit non-goals of this core - multi-document and
// ID-indexed lookup are left to a full implementation - so they are
// registered as named stubs that fail loudly instead of silently
// resolving to an empty node-set, which would be harder to notice.
func registerBuiltins(e *xpath.Evaluator) {
	e.RegisterFunc("current", currentFunc)
	e.RegisterFunc("system-property", systemPropertyFunc)
	e.RegisterFunc("id", notImplementedFunc("id"))
	e.RegisterFunc("key", notImplementedFunc("key"))
	e.RegisterFunc("document", notImplementedFunc("document"))
}

// currentFunc implements current(): the context node active when this
// function is referenced. This core resolves it to the evaluator's own
// context node, which is exact everywhere except inside a nested
// predicate, where the true current() node is the one fixed when the
// enclosing expression was entered rather than the predicate's own ".".
func currentFunc(ctx xpath.Context, args []xpath.Expr) (xpath.Sequence, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("current: no arguments expected")
	}
	return xpath.Singleton(ctx.Node), nil
}

func systemPropertyFunc(ctx xpath.Context, args []xpath.Expr) (xpath.Sequence, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("system-property: one argument expected")
	}
	seq, err := args[0].Find(ctx.Node)
	if err != nil {
		return nil, err
	}
	name, err := sequenceToString(seq)
	if err != nil {
		return nil, err
	}
	switch name {
	case "xsl:version":
		return xpath.Singleton("1.0"), nil
	case "xsl:vendor":
		return xpath.Singleton("midbel/xslt"), nil
	case "xsl:vendor-url":
		return xpath.Singleton("https://github.com/midbel/xslt"), nil
	default:
		return xpath.NewSequence(), nil
	}
}

func notImplementedFunc(name string) xpath.BuiltinFunc {
	return func(ctx xpath.Context, args []xpath.Expr) (xpath.Sequence, error) {
		return nil, newError(name, KindNotImplemented, fmt.Errorf("%s() is not implemented", name))
	}
}
