package persist

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/internal/dbopen"
	"github.com/hazyhaar/pagesync/section"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s
}

func TestSaveAllLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	doc := []section.Section{
		{ID: "b", Type: section.RoleHero, Content: "<h1>B</h1>"},
		{ID: "a", Type: section.RoleFAQ, Content: "<p>A</p>"},
	}
	if err := s.SaveAll(ctx, "doc", doc); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("load mismatch (-want +got):\n%s", diff)
	}

	if err := s.SaveAll(ctx, "doc", doc[1:]); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load(ctx, "doc")
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("after replace got %+v", got)
	}
}

func TestSave_Upsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.Save(ctx, "doc", 1, section.Section{ID: "x", Type: section.RoleCTA, Content: "v1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "doc", 0, section.Section{ID: "y", Type: section.RoleHero, Content: "y"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "doc", 1, section.Section{ID: "x", Type: section.RoleCTA, Content: "v2"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	want := []section.Section{
		{ID: "y", Type: section.RoleHero, Content: "y"},
		{ID: "x", Type: section.RoleCTA, Content: "v2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestLoad_Missing(t *testing.T) {
	got, err := newStore(t).Load(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty slice", got)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.Save(ctx, "doc", 0, section.Section{ID: "x", Type: section.RoleHero})
	if err := s.Delete(ctx, "doc", "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "doc", "x"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	got, _ := s.Load(ctx, "doc")
	if len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	empty, err := s.LoadRecords(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(hydrate.Records{}, empty); diff != "" {
		t.Errorf("empty records (-want +got):\n%s", diff)
	}
	rec := hydrate.Records{
		Producer: section.Producer{Name: "Ada", Authority: "20 years of baking"},
		Product:  section.Product{Name: "Bread 101", Price: 49, IsExternal: true, ExternalURL: "https://pay.example/b"},
	}
	if err := s.SaveRecords(ctx, "doc", rec); err != nil {
		t.Fatal(err)
	}
	rec.Product.Price = 59
	if err := s.SaveRecords(ctx, "doc", rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadRecords(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
