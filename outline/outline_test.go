package outline

import (
	"strings"
	"testing"

	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/section"
)

func TestDocument(t *testing.T) {
	doc := []section.Section{
		{ID: "hero", Type: section.RoleHero, Content: `<h1 contenteditable="true">Bake better bread</h1><p>Learn <strong>sourdough</strong> at home.</p>`},
		{ID: "faq", Type: section.RoleFAQ, Content: `<ul><li>Flour?</li><li>Water?</li></ul><img src="` + hydrate.ProductPlaceholder() + `" alt="loaf">`},
	}
	md, err := New().Document(doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<!-- section id=hero type=hero -->",
		"# Bake better bread",
		"**sourdough**",
		"<!-- section id=faq type=faq -->",
		"- Flour?",
		"![loaf](#inline-image)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("outline missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "contenteditable") || strings.Contains(md, "data:image") {
		t.Errorf("outline leaks markup:\n%s", md)
	}
}

func TestDocument_Empty(t *testing.T) {
	md, err := New().Document(nil)
	if err != nil {
		t.Fatal(err)
	}
	if md != "" {
		t.Errorf("got %q", md)
	}
}
