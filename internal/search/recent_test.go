// ABOUTME: Tests for recent searches management
// ABOUTME: Validates persistence, max limit, ordering and deduplication

package search

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/markalston/storefront-client/internal/storage"
)

func newRecent(t *testing.T) (*Recent, string) {
	t.Helper()
	dir := t.TempDir()
	return New(storage.New(storage.NewFileKV(dir))), dir
}

func TestLoadEmpty(t *testing.T) {
	rs, _ := newRecent(t)

	terms := rs.Load()
	if len(terms) != 0 {
		t.Errorf("expected empty list, got %d terms", len(terms))
	}
}

func TestAddMoveToFront(t *testing.T) {
	rs, _ := newRecent(t)

	rs.Add("kikoy")
	rs.Add("sisal")

	terms := rs.List()
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(terms))
	}
	// Most recent should be first
	if terms[0] != "sisal" {
		t.Errorf("expected sisal first, got %s", terms[0])
	}

	// Add kikoy again - should move to front without duplicating
	rs.Add("kikoy")
	terms = rs.List()
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms after re-add, got %d", len(terms))
	}
	if terms[0] != "kikoy" {
		t.Errorf("expected kikoy first after re-add, got %s", terms[0])
	}
}

func TestAddBlankIgnored(t *testing.T) {
	rs, _ := newRecent(t)

	if rs.Add("   ") {
		t.Error("expected blank term to be ignored")
	}
	rs.Add("  shuka  ")
	if got := rs.List(); !reflect.DeepEqual(got, []string{"shuka"}) {
		t.Errorf("expected trimmed term, got %v", got)
	}
}

func TestMaxLimit(t *testing.T) {
	rs, dir := newRecent(t)

	var added []string
	for i := 1; i <= 8; i++ {
		term := fmt.Sprintf("term%d", i)
		rs.Add(term)
		added = append(added, term)
	}
	// Repeat an old term and a recent one
	rs.Add("term2")
	rs.Add("term8")

	// Read back through a fresh manager so the check is against storage
	stored := New(storage.New(storage.NewFileKV(dir))).List()
	want := []string{"term8", "term2", "term7", "term6", "term5"}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("expected %v, got %v", want, stored)
	}
	if len(stored) != MaxRecentSearches {
		t.Errorf("expected %d terms max, got %d", MaxRecentSearches, len(stored))
	}
}

func TestRemove(t *testing.T) {
	rs, _ := newRecent(t)
	rs.Add("a")
	rs.Add("b")
	rs.Add("c")

	if !rs.Remove("b") {
		t.Fatal("expected Remove to report a change")
	}
	if rs.Remove("missing") {
		t.Error("expected Remove of an unknown term to be a no-op")
	}
	if got := rs.List(); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Errorf("expected [c a], got %v", got)
	}
}

func TestRemoveTrimsTerm(t *testing.T) {
	rs, _ := newRecent(t)
	rs.Add("shoes")
	rs.Add("kikoy")

	if !rs.Remove("  shoes ") {
		t.Fatal("expected a padded term to match the stored one")
	}
	if rs.Remove("   ") {
		t.Error("expected a blank term to be a no-op")
	}
	if got := rs.List(); !reflect.DeepEqual(got, []string{"kikoy"}) {
		t.Errorf("expected [kikoy], got %v", got)
	}
}

func TestClear(t *testing.T) {
	rs, dir := newRecent(t)
	rs.Add("a")

	rs.Clear()

	if len(rs.List()) != 0 {
		t.Error("expected empty list after Clear")
	}
	if len(New(storage.New(storage.NewFileKV(dir))).List()) != 0 {
		t.Error("expected storage to be cleared")
	}
}

func TestLoadNormalizesStoredList(t *testing.T) {
	dir := t.TempDir()
	doc := `{"recentSearches": ["x", "y", "x", "", "z", "w", "v", "u"]}`
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	rs := New(storage.New(storage.NewFileKV(dir)))
	want := []string{"x", "y", "z", "w", "v"}
	if got := rs.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCorruptEntryReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	doc := `{"recentSearches": {"not": "a list"}}`
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	rs := New(storage.New(storage.NewFileKV(dir)))
	if got := rs.List(); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}

	rs.Add("fresh")
	if got := rs.List(); !reflect.DeepEqual(got, []string{"fresh"}) {
		t.Errorf("expected [fresh], got %v", got)
	}
}
