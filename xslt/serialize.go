package xslt

import (
	"io"
	"strings"

	"github.com/midbel/xslt/xml"
)

// Serialize writes the result document per the stylesheet's declared
// output method (§4.1, §7): "text" drops markup entirely and writes the
// concatenated string value of the document, while "xml" and "html" both
// go through the shared xml.Writer - this core does not special-case
// HTML's own serialization quirks (unescaped script content, empty-element
// rules, and so on), which is recorded as a known gap rather than a
// silent approximation.
func (s *Stylesheet) Serialize(doc *xml.Document, w io.Writer) error {
	if s.OutputMethod == MethodText {
		_, err := io.WriteString(w, doc.Value())
		return err
	}
	writer := xml.NewWriter(w)
	if s.Encoding != "" {
		doc.Encoding = s.Encoding
	}
	if s.DoctypePublic != "" || s.DoctypeSystem != "" {
		name := ""
		if root, ok := doc.Root().(*xml.Element); ok {
			name = root.LocalName()
		}
		doc.DocType = xml.NewDocType(name, s.DoctypePublic, s.DoctypeSystem)
	}
	return writer.Write(doc)
}

// SerializeString is the buffered convenience form of Serialize, useful
// for tests; the CLI writes through Serialize directly.
func (s *Stylesheet) SerializeString(doc *xml.Document) (string, error) {
	var buf strings.Builder
	if err := s.Serialize(doc, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
