package filter

import (
	"testing"
)

func eval(t *testing.T, expr string, fields map[string]interface{}, vars Vars) bool {
	t.Helper()

	return MustParse(expr).Matches(fields, vars.Resolve)
}

func TestMatches_FieldAgainstSessionVar(t *testing.T) {
	fields := map[string]interface{}{"owner": "alice", "status": "live"}
	vars := Vars{"user": "alice"}

	if !eval(t, "[owner] = {user}", fields, vars) {
		t.Error("owner = user should match")
	}

	vars["user"] = "bob"
	if eval(t, "[owner] = {user}", fields, vars) {
		t.Error("owner = user should not match for bob")
	}
}

func TestMatches_Operators(t *testing.T) {
	fields := map[string]interface{}{
		"priority": 5,
		"status":   "live",
		"name":     "HV-Sub-12",
		"closed":   nil,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"[priority] >= 3", true},
		{"[priority] < 3", false},
		{"[priority] <> 5", false},
		{"[status] = 'live'", true},
		{"[status] <> 'retired'", true},
		{"[name] like 'HV-%'", true},
		{"[name] like 'LV-%'", false},
		{"[name] ilike 'hv-sub-__'", true},
		{"[closed] = null", true},
		{"[missing] = null", true},
		{"[status] = null", false},
		{"[zone] in ('north', 'south')", false},
		{"[status] in ('live', 'proposed')", true},
	}

	for _, tt := range tests {
		if got := eval(t, tt.expr, fields, nil); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestMatches_BooleanCombinators(t *testing.T) {
	fields := map[string]interface{}{"a": 1, "b": 2, "c": "x"}

	if !eval(t, "([a] = 1 & [b] = 2) | [c] = 'y'", fields, nil) {
		t.Error("grouped and should match")
	}

	if eval(t, "[a] = 1 & [b] = 3", fields, nil) {
		t.Error("and with false branch should not match")
	}

	if !eval(t, "[a] = 9 | [b] = 2", fields, nil) {
		t.Error("or with true branch should match")
	}
}

func TestMatches_RoleMembership(t *testing.T) {
	fields := map[string]interface{}{"crew": "ops"}
	vars := Vars{"roles": []string{"viewer", "ops"}}

	if !eval(t, "[crew] in ({roles})", fields, vars) {
		t.Error("crew in roles should match")
	}

	vars["roles"] = []string{"viewer"}
	if eval(t, "[crew] in ({roles})", fields, vars) {
		t.Error("crew in roles should not match")
	}
}

func TestMatches_UndefinedVariable(t *testing.T) {
	fields := map[string]interface{}{"owner": "alice"}

	// comparisons against an undefined variable never match
	if eval(t, "[owner] = {user}", fields, Vars{}) {
		t.Error("undefined session variable must not match a defined field")
	}
}

func TestMatches_UniversalPredicate(t *testing.T) {
	p := MustParse("")
	if !p.Matches(nil, nil) {
		t.Error("empty expression must match everything")
	}

	var nilP *Predicate
	if !nilP.Matches(map[string]interface{}{"a": 1}, nil) {
		t.Error("nil predicate must match everything")
	}
}

func TestMatches_Truthiness(t *testing.T) {
	tests := []struct {
		val  interface{}
		want bool
	}{
		{true, true},
		{false, false},
		{"yes", true},
		{"", false},
		{0, false},
		{7, true},
	}

	for _, tt := range tests {
		if got := eval(t, "[active]", map[string]interface{}{"active": tt.val}, nil); got != tt.want {
			t.Errorf("truthiness of %v = %v, want %v", tt.val, got, tt.want)
		}
	}
}
