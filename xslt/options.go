package xslt

import "github.com/midbel/xslt/xpath"

// Option configures a single Transform call: an initial mode, an
// externally-bound stylesheet parameter, or a base directory for
// resolving document() arguments (§6 "invocation parameters").
type Option func(*Context)

// WithInitialMode starts the transformation in mode instead of the
// default unnamed mode, the way a command-line -m flag would.
func WithInitialMode(mode string) Option {
	return func(ctx *Context) {
		ctx.Mode = mode
	}
}

// WithParam binds an externally-supplied value for a top-level
// xsl:param, overriding whatever default the stylesheet itself gives it
// - the usual way a caller parameterizes a stylesheet without editing
// it.
func WithParam(name, value string) Option {
	return func(ctx *Context) {
		ctx.define(name, xpath.NewValueFromLiteral(value))
	}
}

// WithBaseDir sets Context.BaseDir. document() is registered as a stub
// that always fails, so nothing reads this directory.
func WithBaseDir(dir string) Option {
	return func(ctx *Context) {
		ctx.BaseDir = dir
	}
}
