package xslt

import "github.com/midbel/xslt/xml"

// Param is a formal xsl:param/xsl:with-param declaration: either a
// template's parameter list entry, or an actual argument supplied by a
// calling apply-templates/call-template instruction.
type Param struct {
	Name    string
	Select  string
	Body    []xml.Node
}

// Template is a compiled xsl:template rule (§4.2).
type Template struct {
	Name     string
	Match    string
	Mode     string
	Priority float64
	HasPrio  bool
	Params   []Param
	Body     []xml.Node

	pattern unionPattern
}

func (t *Template) compilePattern() {
	if t.Match == "" {
		return
	}
	t.pattern = compileUnionPattern(t.Match)
	if !t.HasPrio {
		t.Priority = defaultPriority(t.Match)
	}
}

func (t *Template) matches(node xml.Node) bool {
	if t.Match == "" {
		return false
	}
	return t.pattern.matches(node)
}
