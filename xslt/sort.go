package xslt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/midbel/xslt/xml"
)

// sortSpec is one compiled xsl:sort child (§4.12).
type sortSpec struct {
	Select   string
	DataType string // "text" or "number"
	Order    string // "ascending" or "descending"
}

// compileSortSpecs reads the xsl:sort children of a for-each/
// apply-templates element. An explicit data-type or order outside the
// two values §4.12 defines is a sort that cannot be carried out as
// written, not a value to silently fall back on - it is reported and
// the sort aborts.
func compileSortSpecs(nodes []xml.Node) ([]sortSpec, error) {
	var specs []sortSpec
	for _, n := range nodes {
		el, ok := n.(*xml.Element)
		if !ok || el.Uri != xsltNS || el.LocalName() != "sort" {
			continue
		}
		spec := sortSpec{Select: ".", DataType: "text", Order: "ascending"}
		if v, ok := getAttribute(el, "select"); ok {
			spec.Select = v
		}
		if v, ok := getAttribute(el, "data-type"); ok {
			spec.DataType = v
		}
		if v, ok := getAttribute(el, "order"); ok {
			spec.Order = v
		}
		if spec.DataType != "text" && spec.DataType != "number" {
			return nil, newError("sort", KindInvalidValue, fmt.Errorf("unsupported data-type %q", spec.DataType))
		}
		if spec.Order != "ascending" && spec.Order != "descending" {
			return nil, newError("sort", KindInvalidValue, fmt.Errorf("unsupported order %q", spec.Order))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// sortNodes stable-sorts nodes per specs, evaluating each sort key with
// the node list's own size and the node's original proximity position so
// that position()/last() inside a sort key behave the way §4.12 and the
// underlying XPath semantics require. A key that fails to coerce to its
// declared data-type sorts as the lowest value ("null sorts low").
func (ctx *Context) sortNodes(nodes []xml.Node, specs []sortSpec) ([]xml.Node, error) {
	if len(specs) == 0 {
		return nodes, nil
	}

	type sortKey struct {
		text   string
		number float64
		isNum  bool
	}

	keys := make([][]sortKey, len(nodes))
	for i, n := range nodes {
		row := make([]sortKey, len(specs))
		for j, spec := range specs {
			saved := ctx.save()
			ctx.CurrentNode = n
			ctx.ContextSize = len(nodes)
			ctx.ProximityPosition = i + 1
			seq, err := ctx.eval(spec.Select)
			ctx.restore(saved)
			if err != nil {
				return nil, err
			}
			if spec.DataType == "number" {
				v, ok := sequenceToNumber(seq)
				row[j] = sortKey{number: v, isNum: ok}
			} else {
				s, _ := sequenceToString(seq)
				row[j] = sortKey{text: s}
			}
		}
		keys[i] = row
	}

	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		for j, spec := range specs {
			ka, kb := keys[ia][j], keys[ib][j]
			var less, greater bool
			if spec.DataType == "number" {
				switch {
				case !ka.isNum && kb.isNum:
					less = true
				case ka.isNum && !kb.isNum:
					greater = true
				default:
					less = ka.number < kb.number
					greater = ka.number > kb.number
				}
			} else {
				c := strings.Compare(ka.text, kb.text)
				less, greater = c < 0, c > 0
			}
			if spec.Order == "descending" {
				less, greater = greater, less
			}
			if less {
				return true
			}
			if greater {
				return false
			}
		}
		return false
	})

	sorted := make([]xml.Node, len(nodes))
	for i, ix := range order {
		sorted[i] = nodes[ix]
	}
	return sorted, nil
}
