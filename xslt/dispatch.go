package xslt

import "github.com/midbel/xslt/xml"

// dispatchNode is the Template Dispatcher (§4.2): find the
// highest-priority template rule matching node in mode, falling back to
// the built-in default rule for its node kind when none matches.
func (ctx *Context) dispatchNode(node xml.Node, mode string) error {
	ctx.Tracer.Enter("template", qualifiedNameOf(node), ctx.Depth)
	defer ctx.Tracer.Leave("template", qualifiedNameOf(node), ctx.Depth)

	if t := ctx.Style.FindTemplate(node, mode); t != nil {
		return ctx.invokeTemplate(t, node, mode, nil)
	}
	return ctx.defaultRule(node, mode)
}

// defaultRule implements the built-in template rules XSLT 1.0 defines
// for every node kind a stylesheet's own templates fail to match (§4.2,
// §5.8 of the language): documents and elements recurse into their
// children in the same mode and produce no output of their own; text
// and attribute nodes copy their string value; comments and processing
// instructions produce nothing.
func (ctx *Context) defaultRule(node xml.Node, mode string) error {
	switch node.Type() {
	case xml.TypeDocument, xml.TypeElement:
		return ctx.applyTemplatesTo(childrenOf(node), mode, nil)
	case xml.TypeText, xml.TypeAttribute:
		ctx.appendText(node.Value())
		return nil
	default:
		return nil
	}
}

func childrenOf(node xml.Node) []xml.Node {
	switch n := node.(type) {
	case *xml.Document:
		return n.Nodes
	case *xml.Element:
		return n.Nodes
	default:
		return nil
	}
}

// applyTemplatesTo dispatches each node in nodes, in order, under mode;
// callArgs (if non-nil) are bound as the invoked template's parameters
// for every node, matching xsl:apply-templates passing its xsl:with-param
// children uniformly to each selected node's matching template.
func (ctx *Context) applyTemplatesTo(nodes []xml.Node, mode string, callArgs []Param) error {
	saved := ctx.save()
	defer ctx.restore(saved)

	size := len(nodes)
	for i, n := range nodes {
		ctx.CurrentNode = n
		ctx.NodeList = nodes
		ctx.ContextSize = size
		ctx.ProximityPosition = i + 1

		if t := ctx.Style.FindTemplate(n, mode); t != nil {
			if err := ctx.invokeTemplate(t, n, mode, callArgs); err != nil {
				return err
			}
			continue
		}
		if err := ctx.defaultRule(n, mode); err != nil {
			return err
		}
	}
	return nil
}

// invokeTemplate runs template t with node as the current node: a fresh
// variable scope is opened, its formal parameters bound from callArgs or
// their own defaults, and its body executed (§4.2, §4.7).
func (ctx *Context) invokeTemplate(t *Template, node xml.Node, mode string, callArgs []Param) error {
	saved := ctx.save()
	defer ctx.restore(saved)

	ctx.CurrentNode = node
	ctx.Mode = mode
	ctx.Depth++
	ctx.pushScope()

	for _, p := range t.Params {
		if err := ctx.bindParam(p, callArgs); err != nil {
			return err
		}
	}
	return ctx.executeBody(t.Body)
}

func (ctx *Context) bindParam(p Param, callArgs []Param) error {
	for _, a := range callArgs {
		if a.Name != p.Name {
			continue
		}
		expr, err := ctx.paramExpr(a)
		if err != nil {
			return err
		}
		ctx.define(p.Name, expr)
		return nil
	}
	expr, err := ctx.paramExpr(p)
	if err != nil {
		return err
	}
	ctx.define(p.Name, expr)
	return nil
}
