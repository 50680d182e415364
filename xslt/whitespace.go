package xslt

import (
	"strings"

	"github.com/midbel/xslt/xml"
)

// isIgnorableBlank reports whether node is a text node whose content is
// entirely XML whitespace (§4.3).
func isIgnorableBlank(node xml.Node) bool {
	if node.Type() != xml.TypeText {
		return false
	}
	return strings.TrimFunc(node.Value(), isXMLSpace) == ""
}

func isXMLSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

// stripWhitespace reports whether a blank text node, child of parent,
// should be stripped under the stylesheet's strip/preserve map (§4.3):
// looked up by the parent's unqualified local name, falling back to the
// wildcard "*" entry, defaulting to "keep" when neither is present.
func (s *Stylesheet) stripWhitespace(parent xml.Node, node xml.Node) bool {
	if !isIgnorableBlank(node) {
		return false
	}
	el, ok := parent.(*xml.Element)
	if !ok {
		return false
	}
	if strip, ok := s.Strip[el.LocalName()]; ok {
		return strip
	}
	if strip, ok := s.Strip["*"]; ok {
		return strip
	}
	return false
}

// stripSource removes ignorable whitespace-only text nodes from the
// source tree before processing begins (§4.3), the way libxslt strips
// them once up front rather than re-checking on every node-set access.
func (s *Stylesheet) stripSource(doc *xml.Document) {
	root, ok := doc.Root().(*xml.Element)
	if !ok {
		return
	}
	s.stripElement(root)
}

func (s *Stylesheet) stripElement(el *xml.Element) {
	for i := len(el.Nodes) - 1; i >= 0; i-- {
		child := el.Nodes[i]
		if s.stripWhitespace(el, child) {
			el.RemoveNode(i)
			continue
		}
		if childEl, ok := child.(*xml.Element); ok {
			s.stripElement(childEl)
		}
	}
}
