package filter

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	exprs := []string{
		"",
		"[owner] = {user}",
		"[status] <> 'retired'",
		"[zone] in ('north', 'south')",
		"[priority] >= 3 | [escalated] = true",
		"([a] = 1 & [b] = 2) | [c] = 'x'",
		"[name] like 'HV-%'",
		"[name] ilike '%substation%'",
		"[role] in ({roles})",
		"[closed] = null",
		"[active]",
	}

	for _, e := range exprs {
		if _, err := Parse(e); err != nil {
			t.Errorf("Parse(%q) error: %v", e, err)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	exprs := []string{
		"[owner] =",
		"= 'x'",
		"[a] in ()",
		"[a] & ",
		"[a = 'x'",
	}

	for _, e := range exprs {
		if _, err := Parse(e); err == nil {
			t.Errorf("Parse(%q) expected error", e)
		}
	}
}

func TestPredicate_String(t *testing.T) {
	src := "[owner] = {user}"
	if got := MustParse(src).String(); got != src {
		t.Errorf("String() = %q, want %q", got, src)
	}
}
