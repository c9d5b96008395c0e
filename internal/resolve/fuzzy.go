// Package resolve maps workspace and item names to IDs.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// Named represents any resource with an ID and display name.
type Named struct {
	ID   string
	Name string
}

// Match is a fuzzy match result with score.
type Match struct {
	ID    string
	Name  string
	Score int
}

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrEmptyItems = errors.New("no items to match against")
)

// AmbiguousError indicates multiple candidates matched equally well.
// Matches are sorted best-first and capped (see FuzzyMatch / FuzzyMatchAll).
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "ambiguous match for %q", e.Query)
	if len(e.Matches) > 0 {
		b.WriteString(", candidates:")
		for _, m := range e.Matches {
			_, _ = fmt.Fprintf(&b, "\n  %s: %s", m.ID, m.Name)
		}
	}
	return b.String()
}

// NotFoundError means no resource matched the query. Suggestions holds
// names that share a word with the query.
type NotFoundError struct {
	Kind        string
	Query       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "resource"
	}
	msg := fmt.Sprintf("%s %q not found", kind, e.Query)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + quoteJoin(e.Suggestions) + "?"
	}
	return msg
}

func quoteJoin(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, " or ")
}

const maxSuggestions = 3

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// Resolve returns the ID for query. A UUID is returned in canonical form,
// checked against items when items is non-nil. Names resolve through
// FuzzyMatch.
func Resolve(kind, query string, items []Named) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if id, err := uuid.Parse(query); err == nil {
		canonical := id.String()
		if items == nil {
			return canonical, nil
		}
		for _, item := range items {
			if strings.EqualFold(item.ID, canonical) {
				return item.ID, nil
			}
		}
		return "", &NotFoundError{Kind: kind, Query: query}
	}
	if len(items) == 0 {
		return "", &NotFoundError{Kind: kind, Query: query}
	}
	id, err := FuzzyMatch(query, items)
	if err != nil {
		var ae *AmbiguousError
		if errors.As(err, &ae) {
			return "", err
		}
		return "", &NotFoundError{Kind: kind, Query: query, Suggestions: suggest(query, items)}
	}
	return id, nil
}

// suggest ranks candidates for each word of query and keeps the first
// maxSuggestions distinct names.
func suggest(query string, items []Named) []string {
	seen := map[string]bool{}
	var names []string
	for _, word := range strings.Fields(query) {
		for _, m := range FuzzyMatchAll(word, items, maxSuggestions) {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			names = append(names, m.Name)
			if len(names) == maxSuggestions {
				return names
			}
		}
	}
	return names
}

type namedSourceLower []Named

func (s namedSourceLower) String(i int) string { return strings.ToLower(s[i].Name) }
func (s namedSourceLower) Len() int            { return len(s) }

// FuzzyMatch finds the best matching item by name and returns its ID.
//
// Behavior:
// - Empty query or empty items are errors.
// - Prefers exact case-insensitive matches over fuzzy matches.
// - Two exact matches are ambiguous (names are only unique per item type).
// - Case-insensitive fuzzy matching.
// - If the top two fuzzy results tie on score, returns *AmbiguousError.
func FuzzyMatch(query string, items []Named) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if len(items) == 0 {
		return "", ErrEmptyItems
	}

	var exact []Match
	for _, item := range items {
		if strings.EqualFold(item.Name, query) {
			exact = append(exact, Match{ID: item.ID, Name: item.Name})
		}
	}
	switch len(exact) {
	case 0:
	case 1:
		return exact[0].ID, nil
	default:
		return "", &AmbiguousError{Query: query, Matches: exact}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), namedSourceLower(items))
	if len(results) == 0 {
		return "", fmt.Errorf("no match found for %q", query)
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return "", &AmbiguousError{
			Query:   query,
			Matches: buildMatches(items, results, 5),
		}
	}
	return items[results[0].Index].ID, nil
}

// FuzzyMatchAll returns up to limit matches ranked by score (best first).
func FuzzyMatchAll(query string, items []Named, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || len(items) == 0 || limit <= 0 {
		return nil
	}

	results := fuzzy.FindFrom(strings.ToLower(query), namedSourceLower(items))
	return buildMatches(items, results, limit)
}

func buildMatches(items []Named, results fuzzy.Matches, limit int) []Match {
	if len(results) == 0 || limit <= 0 {
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:    items[r.Index].ID,
			Name:  items[r.Index].Name,
			Score: r.Score,
		}
	}
	return matches
}
