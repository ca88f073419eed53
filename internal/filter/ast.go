package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Resolver supplies session-variable values during evaluation.
// Returning false marks the variable as undefined; comparisons against
// undefined variables are false.
type Resolver func(name string) (interface{}, bool)

// Vars is a map-backed Resolver.
type Vars map[string]interface{}

// Resolve implements variable lookup over the map.
func (v Vars) Resolve(name string) (interface{}, bool) {
	val, ok := v[name]
	return val, ok
}

// Predicate is a compiled filter expression. Predicates are immutable
// and safe for concurrent use.
type Predicate struct {
	root node
	src  string
}

// String returns the source text the predicate was compiled from.
func (p *Predicate) String() string {
	return p.src
}

// Matches evaluates the predicate against a feature's field values
// under the given session-variable resolver.
func (p *Predicate) Matches(fields map[string]interface{}, vars Resolver) bool {
	if p == nil || p.root == nil {
		return true
	}

	return p.root.eval(fields, vars)
}

type node interface {
	eval(fields map[string]interface{}, vars Resolver) bool
}

// orNode is true if any branch is.
type orNode struct {
	branches []node
}

func (n *orNode) eval(fields map[string]interface{}, vars Resolver) bool {
	for _, b := range n.branches {
		if b.eval(fields, vars) {
			return true
		}
	}

	return false
}

// andNode is true if all branches are.
type andNode struct {
	branches []node
}

func (n *andNode) eval(fields map[string]interface{}, vars Resolver) bool {
	for _, b := range n.branches {
		if !b.eval(fields, vars) {
			return false
		}
	}

	return true
}

// value is one side of a comparison: a field reference, a session
// variable or a literal.
type value struct {
	field    string
	variable string
	literal  interface{} // string, float64, bool or nil
	isLit    bool
}

// resolve returns the concrete value and whether it is defined.
func (v *value) resolve(fields map[string]interface{}, vars Resolver) (interface{}, bool) {
	switch {
	case v.field != "":
		val, ok := fields[v.field]
		return val, ok
	case v.variable != "":
		if vars == nil {
			return nil, false
		}

		return vars(v.variable)
	default:
		return v.literal, true
	}
}

// cmpNode compares two values, or tests list membership for "in".
type cmpNode struct {
	left  *value
	op    string
	right *value  // nil for "in"
	list  []*value // "in" members
}

func (n *cmpNode) eval(fields map[string]interface{}, vars Resolver) bool {
	lv, ok := n.left.resolve(fields, vars)
	if !ok && n.op != "=" && n.op != "<>" {
		return false
	}

	if n.op == "in" {
		return n.evalIn(lv, ok, fields, vars)
	}

	rv, rok := n.right.resolve(fields, vars)

	switch n.op {
	case "=":
		// undefined compares equal to null only
		if !ok || !rok {
			return equalValues(nilIfUndef(lv, ok), nilIfUndef(rv, rok))
		}

		return equalValues(lv, rv)
	case "<>":
		if !ok || !rok {
			return !equalValues(nilIfUndef(lv, ok), nilIfUndef(rv, rok))
		}

		return !equalValues(lv, rv)
	case "like":
		return likeMatch(lv, rv, false)
	case "ilike":
		return likeMatch(lv, rv, true)
	case "<", "<=", ">", ">=":
		if !rok {
			return false
		}

		return orderedCompare(lv, rv, n.op)
	default:
		return false
	}
}

// evalIn tests membership of the left value in the member list. A
// single member resolving to a string slice (e.g. {roles}) is expanded.
func (n *cmpNode) evalIn(lv interface{}, ok bool, fields map[string]interface{}, vars Resolver) bool {
	if !ok {
		return false
	}

	for _, m := range n.list {
		mv, mok := m.resolve(fields, vars)
		if !mok {
			continue
		}

		if set, isSet := asStringSlice(mv); isSet {
			for _, s := range set {
				if equalValues(lv, s) {
					return true
				}
			}

			continue
		}

		if equalValues(lv, mv) {
			return true
		}
	}

	return false
}

// truthNode treats a bare operand as a boolean test.
type truthNode struct {
	operand *value
}

func (n *truthNode) eval(fields map[string]interface{}, vars Resolver) bool {
	v, ok := n.operand.resolve(fields, vars)
	if !ok || v == nil {
		return false
	}

	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	default:
		if f, ok := asFloat(v); ok {
			return f != 0
		}

		return true
	}
}

func nilIfUndef(v interface{}, ok bool) interface{} {
	if !ok {
		return nil
	}

	return v
}

// equalValues compares loosely across numeric types; everything else
// via string rendering so int fields match float literals.
func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)

	if aNum && bNum {
		return af == bf
	}

	if aNum != bNum {
		return false
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func orderedCompare(a, b interface{}, op string) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)

	if aNum && bNum {
		switch op {
		case "<":
			return af < bf
		case "<=":
			return af <= bf
		case ">":
			return af > bf
		default:
			return af >= bf
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)

	if !aok || !bok {
		return false
	}

	switch op {
	case "<":
		return as < bs
	case "<=":
		return as <= bs
	case ">":
		return as > bs
	default:
		return as >= bs
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

func asStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}

		return out, true
	default:
		return nil, false
	}
}

// likeMatch implements SQL like/ilike with % and _ wildcards.
func likeMatch(v, pattern interface{}, foldCase bool) bool {
	vs, ok := v.(string)
	if !ok {
		return false
	}

	ps, ok := pattern.(string)
	if !ok {
		return false
	}

	var sb strings.Builder

	sb.WriteString("^")

	for _, r := range ps {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	sb.WriteString("$")

	expr := sb.String()
	if foldCase {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}

	return re.MatchString(vs)
}
