package xslt

import (
	"github.com/midbel/xslt/xml"
)

// Transform is the Entry Point (§4.1): it prepares a fresh result
// document and Transform Context from src and style, evaluates the
// stylesheet's global variables, then dispatches the source document's
// root node through the Template Dispatcher. On any error the partially
// built result document is discarded - the caller gets only the error.
func Transform(style *Stylesheet, src *xml.Document, opts ...Option) (*xml.Document, error) {
	switch style.OutputMethod {
	case MethodXML, MethodHTML, MethodText:
	default:
		return nil, ErrUnsupportedOutput
	}

	style.stripSource(src)

	result := xml.EmptyDocument()
	result.Version = src.Version
	if style.Encoding != "" {
		result.Encoding = style.Encoding
	} else {
		result.Encoding = src.Encoding
	}

	tracer := style.Tracer
	if tracer == nil {
		tracer = NoopTracer()
	}

	ctx := &Context{
		Style:             style,
		SourceDoc:         src,
		ResultDoc:         result,
		CurrentNode:       src,
		ContextSize:       1,
		ProximityPosition: 1,
		InsertPoint:       result,
		Eval:              style.Eval,
		OutputMethod:      style.OutputMethod,
		ExtraDocs:         map[string]*xml.Document{},
		Tracer:            tracer,
	}

	for _, gv := range style.GlobalVars {
		expr, err := ctx.paramExpr(gv)
		if err != nil {
			return nil, err
		}
		ctx.define(gv.Name, expr)
	}

	for _, opt := range opts {
		opt(ctx)
	}

	if err := ctx.dispatchNode(src, ctx.Mode); err != nil {
		tracer.Error("transform", err)
		return nil, err
	}
	return result, nil
}
