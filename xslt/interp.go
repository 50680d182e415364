package xslt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/midbel/xslt/xml"
	"github.com/midbel/xslt/xpath"
)

// executeBody walks a sequence of template/literal-element children,
// dispatching each to its instruction handler, a literal result element
// copy, or a literal text/comment/processing-instruction copy (§4.4). A
// local *Error (a missing attribute, an unresolved reference, a
// structural misuse) is logged and the offending instruction skipped,
// per §7's distinction between these and the fatal errors that abort the
// whole transform; anything else - an XPath evaluation failure, an
// allocation failure - propagates and aborts.
//
// A variable declared as a direct child of body opens a new variable
// scope the first time one is seen, which this call pops again on the
// way out - every body (a template's, an xsl:if's, one iteration of an
// xsl:for-each) gets its own scope this way, so a variable it declares
// never leaks into the body that contains it or, for xsl:for-each, into
// the next iteration. A template's own xsl:param children don't trigger
// this - invokeTemplate already opened and bound their scope before the
// body started running.
func (ctx *Context) executeBody(body []xml.Node) error {
	enclosing := ctx.Eval
	opened := false
	defer func() {
		if opened {
			ctx.Eval = enclosing
		}
	}()

	for _, n := range body {
		if isXSLT(n, "variable") && !opened {
			ctx.pushScope()
			opened = true
		}
		if err := ctx.executeNode(n); err != nil {
			var xerr *Error
			if errors.As(err, &xerr) {
				ctx.Tracer.Error(xerr.Instruction, xerr)
				continue
			}
			return err
		}
	}
	return nil
}

func (ctx *Context) executeNode(n xml.Node) error {
	el, ok := n.(*xml.Element)
	if !ok {
		return ctx.copyLiteralNode(n)
	}
	if el.Uri != xsltNS {
		return ctx.literalElement(el)
	}
	return ctx.executeInstruction(el)
}

func (ctx *Context) copyLiteralNode(n xml.Node) error {
	switch v := n.(type) {
	case *xml.Text, *xml.CharData:
		ctx.appendText(v.Value())
	case *xml.Comment:
		ctx.appendComment(v.Value())
	case *xml.Instruction:
		ctx.appendInstruction(v.LocalName(), v.Value())
	}
	return nil
}

// literalElement copies a non-instruction element of the stylesheet body
// into the result tree, resolving any attribute-value templates on its
// literal attributes before recursing into its children (§4.6, §4.13).
func (ctx *Context) literalElement(el *xml.Element) error {
	if ctx.StringSink != nil {
		return ctx.executeBody(el.Nodes)
	}

	copyEl := ctx.copyLiteralElement(el)
	for _, a := range el.Attributes() {
		val, err := ctx.resolveAVT(a.Value())
		if err != nil {
			return err
		}
		if err := copyEl.SetAttribute(xml.NewAttribute(a.QName, val)); err != nil {
			return err
		}
	}

	saved := ctx.save()
	defer ctx.restore(saved)
	ctx.InsertPoint = copyEl
	return ctx.executeBody(el.Nodes)
}

func isXSLT(n xml.Node, name string) bool {
	el, ok := n.(*xml.Element)
	return ok && el.Uri == xsltNS && el.LocalName() == name
}

func withParamsOf(nodes []xml.Node) []Param {
	var out []Param
	for _, n := range nodes {
		if !isXSLT(n, "with-param") {
			continue
		}
		el := n.(*xml.Element)
		p := Param{Body: el.Nodes}
		if name, ok := getAttribute(el, "name"); ok {
			p.Name = name
		}
		if sel, ok := getAttribute(el, "select"); ok {
			p.Select = sel
		}
		out = append(out, p)
	}
	return out
}

// paramExpr evaluates a variable/parameter/with-param's bound value in
// the calling context: a select expression if given, otherwise its body
// captured as a string, otherwise the empty string.
func (ctx *Context) paramExpr(p Param) (xpath.Expr, error) {
	if p.Select != "" {
		seq, err := ctx.eval(p.Select)
		if err != nil {
			return nil, err
		}
		return xpath.NewValueFromSequence(seq), nil
	}
	if len(p.Body) > 0 {
		s, err := ctx.captureString(p.Body)
		if err != nil {
			return nil, err
		}
		return xpath.NewValueFromLiteral(s), nil
	}
	return xpath.NewValueFromLiteral(""), nil
}

// executeInstruction dispatches a single xsl:* element of a template
// body to its handler (§4.4-§4.11). An element in this namespace that
// this core does not recognize is reported as an unresolved reference
// (KindUnresolved), not silently skipped.
func (ctx *Context) executeInstruction(el *xml.Element) error {
	switch el.LocalName() {
	case "apply-templates":
		return ctx.doApplyTemplates(el)
	case "call-template":
		return ctx.doCallTemplate(el)
	case "for-each":
		return ctx.doForEach(el)
	case "if":
		return ctx.doIf(el)
	case "value-of":
		return ctx.doValueOf(el)
	case "text":
		return ctx.doText(el)
	case "attribute":
		return ctx.doAttribute(el)
	case "comment":
		return ctx.doComment(el)
	case "processing-instruction":
		return ctx.doProcessingInstruction(el)
	case "variable":
		return ctx.doVariable(el)
	case "param":
		// a formal parameter declaration: invokeTemplate already bound
		// it, from a caller-supplied with-param or this element's own
		// default, before the body started running.
		return nil
	case "sort", "with-param":
		// consumed directly by their owning instruction; reaching one
		// here means it was misplaced, which is harmless to ignore.
		return nil
	default:
		return newError(el.LocalName(), KindUnresolved, fmt.Errorf("unsupported instruction xsl:%s", el.LocalName()))
	}
}

func (ctx *Context) doApplyTemplates(el *xml.Element) error {
	ctx.Tracer.Enter("apply-templates", qualifiedNameOf(ctx.CurrentNode), ctx.Depth)
	defer ctx.Tracer.Leave("apply-templates", qualifiedNameOf(ctx.CurrentNode), ctx.Depth)

	mode, _ := getAttribute(el, "mode")

	var nodes []xml.Node
	if v, ok := getAttribute(el, "select"); ok {
		seq, err := ctx.eval(v)
		if err != nil {
			return err
		}
		nodes = sequenceNodes(seq)
	} else {
		nodes = elementAndTextChildren(ctx.CurrentNode)
	}

	specs, err := compileSortSpecs(el.Nodes)
	if err != nil {
		return err
	}
	if nodes, err = ctx.sortNodes(nodes, specs); err != nil {
		return err
	}

	args := withParamsOf(el.Nodes)
	return ctx.applyTemplatesTo(nodes, mode, args)
}

// elementAndTextChildren is the implicit node-list of a select-less
// xsl:apply-templates (§4.5): every element and text/CDATA child, in
// document order, with comments and processing instructions dropped.
func elementAndTextChildren(node xml.Node) []xml.Node {
	var out []xml.Node
	for _, n := range childrenOf(node) {
		switch n.Type() {
		case xml.TypeElement, xml.TypeText:
			out = append(out, n)
		}
	}
	return out
}

func (ctx *Context) doCallTemplate(el *xml.Element) error {
	name, ok := getAttribute(el, "name")
	if !ok {
		return newError("call-template", KindMissingAttribute, fmt.Errorf("missing required name attribute"))
	}
	t := ctx.Style.FindNamedTemplate(name)
	if t == nil {
		return newError("call-template", KindUnresolved, fmt.Errorf("no template named %q", name))
	}
	args := withParamsOf(el.Nodes)
	return ctx.invokeTemplate(t, ctx.CurrentNode, ctx.Mode, args)
}

func (ctx *Context) doForEach(el *xml.Element) error {
	selectExpr, ok := getAttribute(el, "select")
	if !ok {
		return newError("for-each", KindMissingAttribute, fmt.Errorf("missing required select attribute"))
	}
	seq, err := ctx.eval(selectExpr)
	if err != nil {
		return err
	}
	nodes := sequenceNodes(seq)

	specs, err := compileSortSpecs(el.Nodes)
	if err != nil {
		return err
	}
	if nodes, err = ctx.sortNodes(nodes, specs); err != nil {
		return err
	}

	var body []xml.Node
	for _, n := range el.Nodes {
		if isXSLT(n, "sort") {
			continue
		}
		body = append(body, n)
	}

	saved := ctx.save()
	defer ctx.restore(saved)

	size := len(nodes)
	for i, n := range nodes {
		ctx.CurrentNode = n
		ctx.NodeList = nodes
		ctx.ContextSize = size
		ctx.ProximityPosition = i + 1
		if err := ctx.executeBody(body); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) doIf(el *xml.Element) error {
	test, ok := getAttribute(el, "test")
	if !ok {
		return newError("if", KindMissingAttribute, fmt.Errorf("missing required test attribute"))
	}
	matched, err := ctx.evalBool(test)
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}
	return ctx.executeBody(el.Nodes)
}

func (ctx *Context) doValueOf(el *xml.Element) error {
	selectExpr, ok := getAttribute(el, "select")
	if !ok {
		return newError("value-of", KindMissingAttribute, fmt.Errorf("missing required select attribute"))
	}
	if doe, ok := getAttribute(el, "disable-output-escaping"); ok {
		switch doe {
		case "yes":
			ctx.Tracer.Error("value-of", newError("value-of", KindNotImplemented, fmt.Errorf("disable-output-escaping is not implemented")))
		case "no":
		default:
			return newError("value-of", KindInvalidValue, fmt.Errorf("invalid disable-output-escaping value %q", doe))
		}
	}
	s, err := ctx.evalString(selectExpr)
	if err != nil {
		return err
	}
	ctx.appendText(s)
	return nil
}

func (ctx *Context) doText(el *xml.Element) error {
	for _, n := range el.Nodes {
		switch v := n.(type) {
		case *xml.Text, *xml.CharData:
			ctx.appendText(v.Value())
		}
	}
	return nil
}

func (ctx *Context) doAttribute(el *xml.Element) error {
	rawName, ok := getAttribute(el, "name")
	if !ok {
		return newError("attribute", KindMissingAttribute, fmt.Errorf("missing required name attribute"))
	}
	name, err := ctx.resolveAVT(rawName)
	if err != nil {
		return err
	}
	qname, err := ctx.resolveAttributeName(name)
	if err != nil {
		return err
	}
	val, err := ctx.captureString(el.Nodes)
	if err != nil {
		return err
	}
	target, ok := ctx.canAddAttribute()
	if !ok {
		return newError("attribute", KindMisuse, fmt.Errorf("attribute %q added after a child node, or outside an element", name))
	}
	return target.SetAttribute(xml.NewAttribute(qname, val))
}

// resolveAttributeName applies §4.10's naming rule to a resolved
// xsl:attribute name: "xmlns" and any "xmlns:*" name is rejected
// outright (it would declare a namespace rather than an attribute), and
// a prefixed name is resolved against the in-scope namespaces at the
// current insertion point. A prefix with no in-scope binding is logged,
// not fatal - the name is kept as given, unresolved.
func (ctx *Context) resolveAttributeName(name string) (xml.QName, error) {
	if name == "xmlns" || strings.HasPrefix(name, "xmlns:") {
		return xml.QName{}, newError("attribute", KindInvalidValue, fmt.Errorf("%q is not a valid attribute name", name))
	}
	prefix, local, hasPrefix := strings.Cut(name, ":")
	if !hasPrefix {
		return xml.LocalName(name), nil
	}
	uri, ok := resolvePrefixBinding(ctx.InsertPoint, prefix)
	if !ok {
		ctx.Tracer.Error("attribute", fmt.Errorf("prefix %q has no in-scope namespace binding", prefix))
		return xml.QualifiedName(local, prefix), nil
	}
	return xml.ExpandedName(local, prefix, uri), nil
}

func (ctx *Context) doComment(el *xml.Element) error {
	val, err := ctx.captureString(el.Nodes)
	if err != nil {
		return err
	}
	ctx.appendComment(val)
	return nil
}

func (ctx *Context) doProcessingInstruction(el *xml.Element) error {
	rawName, ok := getAttribute(el, "name")
	if !ok {
		return newError("processing-instruction", KindMissingAttribute, fmt.Errorf("missing required name attribute"))
	}
	name, err := ctx.resolveAVT(rawName)
	if err != nil {
		return err
	}
	val, err := ctx.captureString(el.Nodes)
	if err != nil {
		return err
	}
	ctx.appendInstruction(name, val)
	return nil
}

func (ctx *Context) doVariable(el *xml.Element) error {
	name, ok := getAttribute(el, "name")
	if !ok {
		return newError("variable", KindMissingAttribute, fmt.Errorf("missing required name attribute"))
	}
	p := Param{Body: el.Nodes}
	if sel, ok := getAttribute(el, "select"); ok {
		p.Select = sel
	}
	expr, err := ctx.paramExpr(p)
	if err != nil {
		return err
	}
	ctx.define(name, expr)
	return nil
}

func sequenceNodes(seq xpath.Sequence) []xml.Node {
	var out []xml.Node
	for _, item := range seq {
		if n := item.Node(); n != nil {
			out = append(out, n)
		}
	}
	return out
}
