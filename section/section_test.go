package section

import "testing"

func TestRoleKnown(t *testing.T) {
	for _, r := range []Role{RoleHero, RoleAuthor, RoleFAQ, RoleCustom} {
		if !r.Known() {
			t.Errorf("%q.Known() = false, want true", r)
		}
	}
	for _, r := range []Role{"", "testimonials", "HERO"} {
		if r.Known() {
			t.Errorf("%q.Known() = true, want false", r)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := []Section{{ID: "a", Type: RoleHero, Content: "<h1>x</h1>"}}
	c := Clone(orig)
	c[0].Content = "changed"
	if orig[0].Content != "<h1>x</h1>" {
		t.Errorf("Clone shares backing array: orig = %q", orig[0].Content)
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}

func TestIndex(t *testing.T) {
	s := []Section{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if got := Index(s, "b"); got != 1 {
		t.Errorf("Index(b) = %d, want 1", got)
	}
	if got := Index(s, "zz"); got != -1 {
		t.Errorf("Index(zz) = %d, want -1", got)
	}
}

func TestCheckoutURL(t *testing.T) {
	p := Product{ExternalURL: "https://pay.example.com/x"}
	if got := p.CheckoutURL(); got != "" {
		t.Errorf("internal product CheckoutURL = %q, want empty", got)
	}
	p.IsExternal = true
	if got := p.CheckoutURL(); got != "https://pay.example.com/x" {
		t.Errorf("CheckoutURL = %q", got)
	}
}
