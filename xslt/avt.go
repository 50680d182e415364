package xslt

import (
	"iter"
	"strings"
)

// resolveAVT expands an attribute-value template ("prefix{expr}suffix")
// against the current context, evaluating each braced expression and
// concatenating its string value with the literal text around it (§4.6
// "literal result elements", used wherever the grammar allows an AVT:
// literal attributes, xsl:attribute's name/namespace, xsl:element's
// name/namespace).
func (ctx *Context) resolveAVT(value string) (string, error) {
	if !strings.ContainsRune(value, '{') {
		return value, nil
	}
	var out strings.Builder
	for part, isExpr := range iterAVT(value) {
		if !isExpr {
			out.WriteString(part)
			continue
		}
		s, err := ctx.evalString(part)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}
	return out.String(), nil
}

// iterAVT splits str into literal and braced-expression runs, yielding
// (text, false) for literal runs and (expr, true) for the contents of
// each {...}. A literal "{{" or "}}" is not special-cased here - callers
// pass already-unescaped attribute values, matching how this core's
// source documents are read.
func iterAVT(str string) iter.Seq2[string, bool] {
	return func(yield func(string, bool) bool) {
		var offset int
		for {
			ptr := offset
			ix := strings.IndexRune(str[offset:], '{')
			if ix < 0 {
				yield(str[offset:], false)
				return
			}
			offset += ix + 1
			ix = strings.IndexRune(str[offset:], '}')
			if ix < 0 {
				yield(str[ptr:], false)
				return
			}
			if ptr < offset-1 {
				if !yield(str[ptr:offset-1], false) {
					return
				}
			}
			if !yield(str[offset:offset+ix], true) {
				return
			}
			offset += ix + 1
		}
	}
}
