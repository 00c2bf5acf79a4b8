package memo

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// SortField selects the memo attribute used for ordering.
type SortField string

const (
	SortByCreated SortField = "createdAt"
	SortByUpdated SortField = "updatedAt"
	SortByText    SortField = "text"
)

// SortOption configures Sort.
type SortOption struct {
	Field      SortField
	Descending bool
}

// DefaultSort lists the newest memos first.
var DefaultSort = SortOption{Field: SortByCreated, Descending: true}

// Filter returns the memos whose text contains query, case-insensitively.
// A query containing glob metacharacters (*, ?, [) also matches texts the
// glob matches as a whole, so literal punctuation still finds its memo.
// A blank query returns every memo. The input slice is never modified.
func Filter(memos []Memo, query string) []Memo {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]Memo(nil), memos...)
	}

	var g glob.Glob
	if strings.ContainsAny(query, "*?[") {
		g, _ = glob.Compile(query)
	}
	match := func(text string) bool {
		return strings.Contains(text, query) || (g != nil && g.Match(text))
	}

	var result []Memo
	for _, m := range memos {
		if match(strings.ToLower(m.Text)) {
			result = append(result, m)
		}
	}
	return result
}

// Sort returns a sorted copy of memos. Ties keep their input order.
func Sort(memos []Memo, opt SortOption) []Memo {
	out := append([]Memo(nil), memos...)

	less := func(a, b Memo) int {
		switch opt.Field {
		case SortByText:
			return strings.Compare(a.Text, b.Text)
		case SortByUpdated:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if opt.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Next cycles through the sort options in the order the list view offers
// them: each field ascending then descending.
func (o SortOption) Next() SortOption {
	if !o.Descending {
		return SortOption{Field: o.Field, Descending: true}
	}
	switch o.Field {
	case SortByCreated:
		return SortOption{Field: SortByUpdated}
	case SortByUpdated:
		return SortOption{Field: SortByText}
	default:
		return SortOption{Field: SortByCreated}
	}
}

// String renders the option for status lines, e.g. "createdAt desc".
func (o SortOption) String() string {
	dir := "asc"
	if o.Descending {
		dir = "desc"
	}
	return string(o.Field) + " " + dir
}
