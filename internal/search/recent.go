// ABOUTME: Manages the recent product searches list
// ABOUTME: Most recent first, deduplicated and capped, persisted under recentSearches

package search

import (
	"strings"

	"github.com/markalston/storefront-client/internal/storage"
)

// MaxRecentSearches is the maximum number of search terms to keep
const MaxRecentSearches = 5

// Recent manages the list of recently searched terms
type Recent struct {
	store *storage.Store
	terms []string
}

// New creates a Recent manager backed by the store
func New(store *storage.Store) *Recent {
	return &Recent{store: store}
}

// Load reads the list from storage.
// A missing or unreadable entry yields an empty list.
func (r *Recent) Load() []string {
	var terms []string
	if !r.store.GetJSON(storage.KeyRecentSearches, &terms) {
		r.terms = []string{}
		return r.terms
	}
	r.terms = normalize(terms)
	return r.terms
}

// Save writes the list, trimmed to the maximum
func (r *Recent) Save(terms []string) bool {
	terms = normalize(terms)
	r.terms = terms
	return r.store.SetJSON(storage.KeyRecentSearches, terms)
}

// Add puts a term at the front of the list, moving it if already present.
// Blank terms are ignored.
func (r *Recent) Add(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	if r.terms == nil {
		r.Load()
	}

	next := make([]string, 0, len(r.terms)+1)
	next = append(next, term)
	for _, t := range r.terms {
		if t != term {
			next = append(next, t)
		}
	}
	return r.Save(next)
}

// Remove drops a single term
func (r *Recent) Remove(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	if r.terms == nil {
		r.Load()
	}

	next := make([]string, 0, len(r.terms))
	for _, t := range r.terms {
		if t != term {
			next = append(next, t)
		}
	}
	if len(next) == len(r.terms) {
		return false
	}
	return r.Save(next)
}

// Clear forgets every term
func (r *Recent) Clear() bool {
	r.terms = []string{}
	return r.store.Delete(storage.KeyRecentSearches)
}

// List returns the current list of recent terms
func (r *Recent) List() []string {
	if r.terms == nil {
		r.Load()
	}
	return append([]string(nil), r.terms...)
}

// normalize drops blanks and duplicates, keeping the first occurrence, and caps the length
func normalize(terms []string) []string {
	out := make([]string, 0, MaxRecentSearches)
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxRecentSearches {
			break
		}
	}
	return out
}
