package xslt_test

import (
	"strings"
	"testing"

	"github.com/midbel/xslt/xml"
	"github.com/midbel/xslt/xslt"
)

func compile(t *testing.T, doc string) *xslt.Stylesheet {
	t.Helper()
	d, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("parse stylesheet: %s", err)
	}
	style, err := xslt.Compile(d)
	if err != nil {
		t.Fatalf("compile stylesheet: %s", err)
	}
	return style
}

func run(t *testing.T, style *xslt.Stylesheet, source string) string {
	t.Helper()
	src, err := xml.ParseString(source)
	if err != nil {
		t.Fatalf("parse source: %s", err)
	}
	result, err := xslt.Transform(style, src)
	if err != nil {
		t.Fatalf("transform: %s", err)
	}
	out, err := style.SerializeString(result)
	if err != nil {
		t.Fatalf("serialize: %s", err)
	}
	return out
}

const stylesheetHeader = `<xsl:stylesheet xmlns:xsl="http://www.w3.org/1999/XSL/Transform" version="1.0">`

func TestIdentityOnTextOnlyDoc(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="/"><xsl:apply-templates/></xsl:template>`+
		`</xsl:stylesheet>`)
	out := run(t, style, `<r>hello</r>`)
	if !strings.Contains(out, "hello") {
		t.Fatalf("want result to contain %q, got %q", "hello", out)
	}
}

func TestValueOfStringCoercion(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="/"><xsl:value-of select="r/a[1]"/></xsl:template>`+
		`</xsl:stylesheet>`)
	out := run(t, style, `<r><a>1</a><a>2</a></r>`)
	if !strings.HasSuffix(out, "1") {
		t.Fatalf("want result ending in %q, got %q", "1", out)
	}
}

func TestForEachSortDescendingNumeric(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="/">`+
		`<xsl:for-each select="r/i">`+
		`<xsl:sort select="." data-type="number" order="descending"/>`+
		`<xsl:value-of select="."/>,`+
		`</xsl:for-each>`+
		`</xsl:template></xsl:stylesheet>`)
	out := run(t, style, `<r><i>10</i><i>2</i><i>30</i></r>`)
	if !strings.HasSuffix(out, "30,10,2,") {
		t.Fatalf("want result ending in %q, got %q", "30,10,2,", out)
	}
}

func TestConditional(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="r"><out><xsl:if test="name()='r'">YES</xsl:if></out></xsl:template>`+
		`</xsl:stylesheet>`)
	out := run(t, style, `<r/>`)
	if !strings.HasSuffix(out, `<out>YES</out>`) {
		t.Fatalf("want result ending in %q, got %q", `<out>YES</out>`, out)
	}
}

func TestNamedTemplateWithParameter(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="/"><xsl:call-template name="greet">`+
		`<xsl:with-param name="who" select="'world'"/>`+
		`</xsl:call-template></xsl:template>`+
		`<xsl:template name="greet"><xsl:param name="who"/>Hello <xsl:value-of select="$who"/></xsl:template>`+
		`</xsl:stylesheet>`)
	out := run(t, style, `<r/>`)
	if !strings.HasSuffix(out, "Hello world") {
		t.Fatalf("want result ending in %q, got %q", "Hello world", out)
	}
}

func TestLiteralElementWithAVTAttribute(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="r"><a href="u-{name()}"/></xsl:template>`+
		`</xsl:stylesheet>`)
	out := run(t, style, `<r/>`)
	if !strings.HasSuffix(out, `<a href="u-r"/>`) {
		t.Fatalf("want result ending in %q, got %q", `<a href="u-r"/>`, out)
	}
}

func TestDefaultRecursionOnEmptyStylesheet(t *testing.T) {
	style := compile(t, stylesheetHeader+`</xsl:stylesheet>`)
	out := run(t, style, `<r><a>one</a><b>two</b></r>`)
	if !strings.HasSuffix(out, "onetwo") {
		t.Fatalf("want result ending in %q, got %q", "onetwo", out)
	}
}

func TestAttributePrecondition(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:template match="/"><out><child/><xsl:attribute name="broken">late</xsl:attribute></out></xsl:template>`+
		`</xsl:stylesheet>`)
	out := run(t, style, `<r/>`)
	if strings.Contains(out, "broken") {
		t.Fatalf("expected attribute added after a child to be dropped, got %q", out)
	}
	if !strings.Contains(out, "<child/>") {
		t.Fatalf("expected existing children to survive, got %q", out)
	}
}

func TestWhitespaceStrippingIdempotence(t *testing.T) {
	style := compile(t, stylesheetHeader+
		`<xsl:strip-space elements="r"/>`+
		`<xsl:template match="/"><xsl:apply-templates/></xsl:template>`+
		`</xsl:stylesheet>`)

	src, err := xml.ParseString("<r>\n  <a>x</a>\n  <a>y</a>\n</r>")
	if err != nil {
		t.Fatalf("parse source: %s", err)
	}
	first, err := xslt.Transform(style, src)
	if err != nil {
		t.Fatalf("transform: %s", err)
	}
	firstOut, err := style.SerializeString(first)
	if err != nil {
		t.Fatalf("serialize: %s", err)
	}

	second, err := xslt.Transform(style, src)
	if err != nil {
		t.Fatalf("re-transform: %s", err)
	}
	secondOut, err := style.SerializeString(second)
	if err != nil {
		t.Fatalf("serialize: %s", err)
	}
	if firstOut != secondOut {
		t.Fatalf("stripping is not idempotent: %q != %q", firstOut, secondOut)
	}
}
