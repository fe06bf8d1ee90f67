package engine

import (
	"strings"

	"github.com/avoss/projectwarden/internal/marketplace"
)

// Pattern is the matching criteria behind a hidden category, a learned
// exclusion, or a similarity search. Terms are matched case-insensitively
// as substrings of a project's title and description, so a pattern derived
// from "too far away, I'm not in California" catches every project that
// names the state.
type Pattern struct {
	Keywords    []string `json:"keywords"`
	Regions     []string `json:"regions"`
	Professions []string `json:"professions"`
	Industries  []string `json:"industries"`
}

// Valid reports whether the pattern carries at least one term. Empty
// patterns are rejected before storage; they would match nothing but still
// pollute the preference record.
func (pat Pattern) Valid() bool {
	return len(pat.Keywords) > 0 || len(pat.Regions) > 0 ||
		len(pat.Professions) > 0 || len(pat.Industries) > 0
}

// Matches reports whether any of the pattern's terms occurs in the
// project's searchable text.
func (pat Pattern) Matches(p marketplace.Project) bool {
	text := p.SearchText()
	if text == "" {
		return false
	}
	for _, term := range pat.terms() {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Overlaps reports whether the two patterns share a term. Used to suppress
// a freshly derived pattern the user already rejected.
func (pat Pattern) Overlaps(other Pattern) bool {
	mine := pat.terms()
	if len(mine) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(mine))
	for _, term := range mine {
		set[term] = struct{}{}
	}
	for _, term := range other.terms() {
		if _, ok := set[term]; ok {
			return true
		}
	}
	return false
}

// terms flattens the pattern into normalized lowercase terms.
func (pat Pattern) terms() []string {
	var terms []string
	for _, group := range [][]string{pat.Keywords, pat.Regions, pat.Professions, pat.Industries} {
		for _, term := range group {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// MatchingProjects filters projects down to the ones the pattern matches,
// skipping excludeID (pass "" to keep everything). Order is preserved.
func MatchingProjects(projects []marketplace.Project, pat Pattern, excludeID string) []marketplace.Project {
	var matched []marketplace.Project
	for _, p := range projects {
		if excludeID != "" && p.ID == excludeID {
			continue
		}
		if pat.Matches(p) {
			matched = append(matched, p)
		}
	}
	return matched
}
