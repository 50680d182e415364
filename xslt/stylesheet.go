package xslt

import (
	"fmt"

	"github.com/midbel/xslt/xml"
	"github.com/midbel/xslt/xpath"
)

// xsltNS is the namespace URI that marks an instruction element as
// belonging to this transformation language (§2, §4.2).
const xsltNS = "http://www.w3.org/1999/XSL/Transform"

// Stylesheet is the minimal compiled form of an xsl:stylesheet document:
// just enough of a stylesheet compiler (nominally external, per §1/§6)
// for the Template Dispatcher and Instruction Interpreter in this module
// to have something to run against.
type Stylesheet struct {
	Templates []*Template
	Strip     map[string]bool

	OutputMethod  OutputMethod
	DoctypePublic string
	DoctypeSystem string
	Encoding      string
	WrapRoot      bool

	GlobalVars []Param
	Eval       *xpath.Evaluator
	Tracer     Tracer
}

// Load reads and compiles a stylesheet document from file.
func Load(file string) (*Stylesheet, error) {
	doc, err := xml.ParseFile(file)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Compile builds a Stylesheet from an already-parsed xsl:stylesheet (or
// xsl:transform) document, or from a simplified stylesheet whose
// document element is itself a literal result element carrying
// xsl:version (§2 "literal result element as stylesheet").
func Compile(doc *xml.Document) (*Stylesheet, error) {
	root, ok := doc.Root().(*xml.Element)
	if !ok {
		return nil, newError("stylesheet", KindMissingAttribute, fmt.Errorf("document has no root element"))
	}

	style := &Stylesheet{
		Strip:        map[string]bool{},
		OutputMethod: MethodXML,
		WrapRoot:     true,
		Eval:         xpath.NewEvaluator(),
		Tracer:       NoopTracer(),
	}
	registerBuiltins(style.Eval)

	if root.Uri == xsltNS && (root.LocalName() == "stylesheet" || root.LocalName() == "transform") {
		for _, n := range root.Nodes {
			el, ok := n.(*xml.Element)
			if !ok || el.Uri != xsltNS {
				continue
			}
			if err := style.compileTopLevel(el); err != nil {
				return nil, err
			}
		}
	} else {
		// simplified stylesheet: the document element is itself the sole
		// template, matching "/".
		t := &Template{Match: "/", Body: []xml.Node{root}}
		t.compilePattern()
		style.Templates = append(style.Templates, t)
	}

	return style, nil
}

func (s *Stylesheet) compileTopLevel(el *xml.Element) error {
	switch el.LocalName() {
	case "template":
		t, err := compileTemplate(el)
		if err != nil {
			return err
		}
		s.Templates = append(s.Templates, t)
	case "output":
		if m, ok := getAttribute(el, "method"); ok {
			s.OutputMethod = OutputMethod(m)
		}
		if v, ok := getAttribute(el, "doctype-public"); ok {
			s.DoctypePublic = v
		}
		if v, ok := getAttribute(el, "doctype-system"); ok {
			s.DoctypeSystem = v
		}
		if v, ok := getAttribute(el, "encoding"); ok {
			s.Encoding = v
		}
	case "strip-space":
		s.setStrip(el, true)
	case "preserve-space":
		s.setStrip(el, false)
	case "variable", "param":
		p := Param{Body: el.Nodes}
		if name, ok := getAttribute(el, "name"); ok {
			p.Name = name
		}
		if sel, ok := getAttribute(el, "select"); ok {
			p.Select = sel
		}
		s.GlobalVars = append(s.GlobalVars, p)
	case "key", "decimal-format", "namespace-alias", "attribute-set", "include", "import":
		// explicit non-goals (§ Non-goals): recognized so they are not
		// reported as misuse, but otherwise inert.
	default:
	}
	return nil
}

func (s *Stylesheet) setStrip(el *xml.Element, strip bool) {
	names, _ := getAttribute(el, "elements")
	for _, name := range splitTokens(names) {
		s.Strip[name] = strip
	}
}

func splitTokens(s string) []string {
	var out []string
	var cur []rune
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

func compileTemplate(el *xml.Element) (*Template, error) {
	t := &Template{Body: el.Nodes}
	if name, ok := getAttribute(el, "name"); ok {
		t.Name = name
	}
	if match, ok := getAttribute(el, "match"); ok {
		t.Match = match
	}
	if mode, ok := getAttribute(el, "mode"); ok {
		t.Mode = mode
	}
	if prio, ok := getAttribute(el, "priority"); ok {
		var f float64
		if _, err := fmt.Sscanf(prio, "%g", &f); err == nil {
			t.Priority = f
			t.HasPrio = true
		}
	}
	for _, n := range el.Nodes {
		pel, ok := n.(*xml.Element)
		if !ok || pel.Uri != xsltNS || pel.LocalName() != "param" {
			continue
		}
		p := Param{}
		if name, ok := getAttribute(pel, "name"); ok {
			p.Name = name
		}
		if sel, ok := getAttribute(pel, "select"); ok {
			p.Select = sel
		}
		p.Body = pel.Nodes
		t.Params = append(t.Params, p)
	}
	if t.Match == "" && t.Name == "" {
		return nil, newError("template", KindMissingAttribute, fmt.Errorf("template has neither match nor name"))
	}
	t.compilePattern()
	return t, nil
}

// FindTemplate looks up the best-matching template rule for node in mode,
// per §4.2's priority then document-order (last-declared-wins) tie-break.
func (s *Stylesheet) FindTemplate(node xml.Node, mode string) *Template {
	var best *Template
	for _, t := range s.Templates {
		if t.Match == "" || t.Mode != mode {
			continue
		}
		if !t.matches(node) {
			continue
		}
		if best == nil || t.Priority >= best.Priority {
			best = t
		}
	}
	return best
}

// FindNamedTemplate looks up an xsl:template declared with a name, for
// xsl:call-template (§4.7).
func (s *Stylesheet) FindNamedTemplate(name string) *Template {
	for _, t := range s.Templates {
		if t.Name == name {
			return t
		}
	}
	return nil
}
