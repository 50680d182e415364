package xslt

import (
	"strings"

	"github.com/midbel/xslt/xml"
)

// Pattern matching and default-priority computation for the Template
// Dispatcher (§4.2, §6 "pattern engine"). The core spec treats the
// pattern engine as an external collaborator; this file is the concrete
// adapter this module ships so Find/defaultPriority have an
// implementation to call, grounded in the vocabulary (not the code) of
// the teacher's xslt/pattern.go: nameMatcher, wildcardMatcher,
// attributeMatcher, pathMatcher, textMatcher, predicateMatcher become
// the step kinds below, written from scratch because the teacher's
// Matcher tree was a non-compiling mix of two incompatible snapshots and
// every one of its Priority() implementations unconditionally returned
// 0, which is not the XSLT 1.0 default-priority rule.
//
// Limitation, documented rather than silently dropped: a predicate on a
// pattern step ("a[1]") is parsed but not evaluated - the step matches
// as if the predicate were absent. Supporting predicates fully requires
// sibling position/size bookkeeping the pattern engine does not own in
// this design; patterns without predicates (the common case, and the
// only case exercised by this core's end-to-end scenarios) match
// exactly.
type patternStep struct {
	axis string // "child" or "attribute"
	test func(xml.Node) bool
	desc bool // true if this step may skip ancestors ("//" before it)
}

type compiledPattern struct {
	absolute bool
	steps    []patternStep
}

// compilePattern parses a single (non-union) match pattern alternative.
func compilePattern(pat string) compiledPattern {
	pat = strings.TrimSpace(pat)
	var cp compiledPattern
	if pat == "/" {
		cp.absolute = true
		cp.steps = []patternStep{{test: func(n xml.Node) bool { return n.Type() == xml.TypeDocument }}}
		return cp
	}
	if strings.HasPrefix(pat, "//") {
		cp.absolute = true
		pat = pat[2:]
	} else if strings.HasPrefix(pat, "/") {
		cp.absolute = true
		pat = pat[1:]
	}
	for _, raw := range splitSteps(pat) {
		desc := false
		s := raw
		if strings.HasPrefix(s, "//") {
			desc = true
			s = s[2:]
		}
		cp.steps = append(cp.steps, compileStep(s, desc))
	}
	return cp
}

// splitSteps splits a relative path pattern on top-level '/' boundaries,
// keeping a leading "//" attached to the step that follows it.
func splitSteps(pat string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '/':
			if depth == 0 {
				parts = append(parts, pat[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, pat[start:])

	var out []string
	for i := 0; i < len(parts); i++ {
		p := parts[i]
		if p == "" && i+1 < len(parts) {
			out = append(out, "//"+parts[i+1])
			i++
			continue
		}
		out = append(out, p)
	}
	return out
}

func compileStep(s string, desc bool) patternStep {
	step := patternStep{axis: "child", desc: desc}
	if strings.HasPrefix(s, "@") {
		step.axis = "attribute"
		s = s[1:]
	} else if strings.HasPrefix(s, "attribute::") {
		step.axis = "attribute"
		s = s[len("attribute::"):]
	} else if strings.HasPrefix(s, "child::") {
		s = s[len("child::"):]
	}
	// strip a trailing predicate; see the package doc comment above.
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	switch {
	case s == "node()":
		step.test = func(n xml.Node) bool { return true }
	case s == "text()":
		step.test = func(n xml.Node) bool { return n.Type() == xml.TypeText }
	case s == "comment()":
		step.test = func(n xml.Node) bool { return n.Type() == xml.TypeComment }
	case s == "processing-instruction()":
		step.test = func(n xml.Node) bool { return n.Type() == xml.TypeInstruction }
	case s == "*":
		wantType := xml.TypeElement
		if step.axis == "attribute" {
			wantType = xml.TypeAttribute
		}
		step.test = func(n xml.Node) bool { return n.Type() == wantType }
	default:
		step.test = compileNameTest(s, step.axis)
	}
	return step
}

func compileNameTest(s string, axis string) func(xml.Node) bool {
	wantType := xml.TypeElement
	if axis == "attribute" {
		wantType = xml.TypeAttribute
	}
	prefix, local, hasPrefix := strings.Cut(s, ":")
	if !hasPrefix {
		local = prefix
		prefix = ""
	}
	if local == "*" {
		return func(n xml.Node) bool {
			if n.Type() != wantType {
				return false
			}
			return namespaceOf(n) == prefix
		}
	}
	return func(n xml.Node) bool {
		return n.Type() == wantType && n.LocalName() == local
	}
}

func namespaceOf(n xml.Node) string {
	switch x := n.(type) {
	case *xml.Element:
		return x.Space
	case *xml.Attribute:
		return x.Space
	default:
		return ""
	}
}

// matches reports whether node satisfies the pattern, walking the
// ancestor chain bottom-up from the pattern's last step.
func (cp compiledPattern) matches(node xml.Node) bool {
	if len(cp.steps) == 0 {
		return false
	}
	cur := node
	for i := len(cp.steps) - 1; i >= 0; i-- {
		if cur == nil {
			return false
		}
		if !cp.steps[i].test(cur) {
			return false
		}
		if i == 0 {
			if cp.absolute {
				parent := cur.Parent()
				return parent == nil || parent.Type() == xml.TypeDocument
			}
			return true
		}
		if cp.steps[i].axis == "attribute" {
			if a, ok := cur.(*xml.Attribute); ok {
				cur = a.Parent()
				continue
			}
		}
		if cp.steps[i].desc {
			parent := cur.Parent()
			for parent != nil && !cp.steps[i-1].test(parent) {
				parent = parent.Parent()
			}
			cur = parent
		} else {
			cur = cur.Parent()
		}
	}
	return true
}

// unionPattern is a compiled `pat1 | pat2 | ...` match pattern.
type unionPattern struct {
	alts []compiledPattern
}

func compileUnionPattern(pat string) unionPattern {
	var up unionPattern
	for _, alt := range splitUnion(pat) {
		up.alts = append(up.alts, compilePattern(alt))
	}
	return up
}

func splitUnion(pat string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '|':
			if depth == 0 {
				parts = append(parts, pat[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, pat[start:])
	return parts
}

func (up unionPattern) matches(node xml.Node) bool {
	for _, p := range up.alts {
		if p.matches(node) {
			return true
		}
	}
	return false
}

// defaultPriority computes the XSLT 1.0 §5.5 default priority of a match
// pattern from its surface syntax, which the teacher's pattern.go never
// did correctly (every Priority() implementation there returns 0).
func defaultPriority(pat string) float64 {
	alts := splitUnion(pat)
	if len(alts) > 1 {
		// a pattern with alternatives has no single default priority;
		// XSLT requires every alternative use an explicit priority in
		// that case. Absent one, it gets 0.5, the same as a single QName
		// or a multi-step path, so between those FindTemplate's
		// last-declared tie-break decides.
		return 0.5
	}
	steps := splitSteps(strings.TrimPrefix(strings.TrimPrefix(alts[0], "/"), "/"))
	if len(steps) == 0 {
		return -0.5
	}
	last := strings.TrimPrefix(steps[len(steps)-1], "//")
	if i := strings.IndexByte(last, '['); i >= 0 {
		last = last[:i]
	}
	last = strings.TrimPrefix(last, "@")
	last = strings.TrimPrefix(last, "attribute::")
	last = strings.TrimPrefix(last, "child::")
	last = strings.TrimSpace(last)

	switch {
	case len(steps) > 1:
		return 0.5
	case last == "*":
		return -0.5
	case last == "node()" || last == "text()" || last == "comment()":
		return -0.5
	case strings.HasPrefix(last, "processing-instruction("):
		if last == "processing-instruction()" {
			return -0.5
		}
		return 0
	case strings.Contains(last, ":"):
		prefix, local, _ := strings.Cut(last, ":")
		_ = prefix
		if local == "*" {
			return -0.25
		}
		return 0.5
	default:
		return 0.5
	}
}
