package idgen

import (
	"strings"
	"testing"
)

func TestSection(t *testing.T) {
	a, b := Section(), Section()
	if !strings.HasPrefix(a, "sec_") {
		t.Fatalf("missing prefix: %q", a)
	}
	if a == b {
		t.Fatalf("duplicate id %q", a)
	}
	if _, err := Parse(strings.TrimPrefix(a, "sec_")); err != nil {
		t.Fatal(err)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for range 100 {
		id := gen()
		if id <= prev {
			t.Fatalf("not increasing: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("nope"); err == nil {
		t.Error("expected error")
	}
}
