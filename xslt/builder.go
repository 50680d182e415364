package xslt

import (
	"github.com/midbel/xslt/xml"
)

// appendChild appends node under the current insertion point (§3's
// insert_point), whether that point is the result document itself (for
// a still-empty result tree) or an element already inside it.
func (ctx *Context) appendChild(node xml.Node) {
	switch at := ctx.InsertPoint.(type) {
	case *xml.Element:
		at.Append(node)
	case *xml.Document:
		at.Attach(node)
		if el, ok := node.(*xml.Element); ok {
			ctx.InsertPoint = el
		}
	}
}

func (ctx *Context) appendText(s string) {
	if ctx.StringSink != nil {
		ctx.StringSink.WriteString(s)
		return
	}
	ctx.appendChild(xml.NewText(s))
}

func (ctx *Context) appendComment(s string) {
	if ctx.StringSink != nil {
		return
	}
	ctx.appendChild(xml.NewComment(s))
}

func (ctx *Context) appendInstruction(name, value string) {
	if ctx.StringSink != nil {
		return
	}
	pi := xml.NewInstruction(xml.LocalName(name))
	pi.Attrs = []xml.Attribute{xml.NewAttribute(xml.LocalName("data"), value)}
	ctx.appendChild(pi)
}

// canAddAttribute is the attribute precondition of §4.10: insert_point
// must be an element with no children yet, since attributes cannot
// follow content.
func (ctx *Context) canAddAttribute() (*xml.Element, bool) {
	el, ok := ctx.InsertPoint.(*xml.Element)
	if !ok {
		return nil, false
	}
	return el, len(el.Nodes) == 0
}

// copyLiteralElement implements the Result Builder's element-copy
// procedure (§4.13): a shallow copy parented to insert_point, its
// namespace declarations copied verbatim, and its primary namespace
// binding resolved by direct parent reuse, then by an ancestor search,
// then by declaring a fresh binding.
func (ctx *Context) copyLiteralElement(src *xml.Element) *xml.Element {
	if ctx.StringSink != nil {
		return nil
	}
	copyEl := xml.NewElement(xml.QName{Name: src.Name})

	for _, a := range src.Attrs {
		if a.Name == "xmlns" || a.Space == "xmlns" {
			copyEl.Attrs = append(copyEl.Attrs, a)
		}
	}

	uri := src.Uri
	if uri == "" {
		copyEl.QName = xml.QName{Name: src.Name}
	} else if parent, ok := ctx.InsertPoint.(*xml.Element); ok && parent.Uri == uri {
		copyEl.QName = xml.QName{Uri: uri, Space: parent.Space, Name: src.Name}
	} else if prefix, ok := findNamespaceBinding(ctx.InsertPoint, uri); ok {
		copyEl.QName = xml.QName{Uri: uri, Space: prefix, Name: src.Name}
	} else {
		copyEl.QName = xml.QName{Uri: uri, Space: src.Space, Name: src.Name}
		decl := xml.QName{Name: "xmlns"}
		if src.Space != "" {
			decl = xml.QName{Space: "xmlns", Name: src.Space}
		}
		copyEl.Attrs = append(copyEl.Attrs, xml.NewAttribute(decl, uri))
	}

	ctx.appendChild(copyEl)
	return copyEl
}

// findNamespaceBinding searches the result tree upward from node for an
// existing binding of uri, returning the prefix it is bound under ("" for
// the default namespace).
func findNamespaceBinding(node xml.Node, uri string) (string, bool) {
	for node != nil {
		el, ok := node.(*xml.Element)
		if !ok {
			node = node.Parent()
			continue
		}
		for _, ns := range el.Namespaces() {
			if ns.Uri == uri {
				return ns.Prefix, true
			}
		}
		node = node.Parent()
	}
	return "", false
}

// resolvePrefixBinding searches the result tree upward from node for the
// URI bound to prefix, the inverse lookup of findNamespaceBinding: used
// to resolve a prefixed xsl:attribute/xsl:processing-instruction name
// against the in-scope namespaces at the current insertion point (§4.10).
func resolvePrefixBinding(node xml.Node, prefix string) (string, bool) {
	for node != nil {
		el, ok := node.(*xml.Element)
		if !ok {
			node = node.Parent()
			continue
		}
		for _, ns := range el.Namespaces() {
			if ns.Prefix == prefix {
				return ns.Uri, true
			}
		}
		node = node.Parent()
	}
	return "", false
}
