package xslt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/midbel/xslt/xml"
	"github.com/midbel/xslt/xpath"
)

// sequenceToString coerces an XPath result to a string the way the XPath
// string() function would (§4.9, §6 "coerce a result to string").
func sequenceToString(seq xpath.Sequence) (string, error) {
	if seq.Empty() {
		return "", nil
	}
	return itemToString(seq.First())
}

func itemToString(item xpath.Item) (string, error) {
	switch v := item.Value().(type) {
	case string:
		return v, nil
	case float64:
		if v != v { // NaN
			return "NaN", nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// sequenceToNumber coerces an XPath result to a float64 the way the
// XPath number() function would; used by the Sort Stage's data-type
// coercion (§4.12).
func sequenceToNumber(seq xpath.Sequence) (float64, bool) {
	if seq.Empty() {
		return 0, false
	}
	switch v := seq.First().Value().(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func cloneNode(n xml.Node) xml.Node {
	cloner, ok := n.(xml.Cloner)
	if !ok {
		return nil
	}
	return cloner.Clone()
}

func asElement(node xml.Node) (*xml.Element, bool) {
	el, ok := node.(*xml.Element)
	return el, ok
}

func hasAttribute(el *xml.Element, name string) bool {
	for i := range el.Attrs {
		if el.Attrs[i].Name == name {
			return true
		}
	}
	return false
}

func getAttribute(el *xml.Element, name string) (string, bool) {
	for i := range el.Attrs {
		if el.Attrs[i].Name == name {
			return el.Attrs[i].Value(), true
		}
	}
	return "", false
}
