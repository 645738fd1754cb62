package catchment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// keyRule matches an attribute key.
type keyRule func(folded, key string) bool

// nameRules select the display-name attribute. A key matches when its
// case-folded form contains "name".
var nameRules = []keyRule{
	func(folded, _ string) bool { return strings.Contains(folded, "name") },
}

// idKeys are the display-id attribute keys in priority order.
var idKeys = []string{"OBJECTID", "id", "ID", "_id"}

// AttributeKeys returns the attribute keys of p in scan order: the order
// recorded by the parser when available, otherwise sorted. Keys listed in
// KeyOrder but absent from Attributes are skipped.
func (p Point) AttributeKeys() []string {
	if len(p.KeyOrder) > 0 {
		keys := make([]string, 0, len(p.KeyOrder))
		for _, k := range p.KeyOrder {
			if _, ok := p.Attributes[k]; ok {
				keys = append(keys, k)
			}
		}
		return keys
	}
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DisplayID returns the first present id attribute, or the 1-based position
// of the point within its group.
func DisplayID(p Point, index int) any {
	for _, k := range idKeys {
		if v, ok := p.Attributes[k]; ok && present(v) {
			return v
		}
	}
	return index + 1
}

// DisplayName returns the value of the first attribute whose key matches a
// name rule, stringified. Points without one are labeled "Point <id>".
func DisplayName(p Point, index int) string {
	fold := cases.Fold()
	for _, k := range p.AttributeKeys() {
		folded := fold.String(k)
		for _, rule := range nameRules {
			if rule(folded, k) {
				return stringify(p.Attributes[k])
			}
		}
	}
	return fmt.Sprintf("Point %v", DisplayID(p, index))
}

// present reports whether an attribute value counts as set. Nil, empty
// strings, zero or NaN numbers and false are treated as missing.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
