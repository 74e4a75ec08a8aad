package card

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/abelbrown/verdant/internal/config"
)

// Filter keeps rows whose displayed name contains query, ignoring case.
// With nickname set the nickname attribute is matched too. An empty
// query keeps every row. Whitespace in query is significant. The input
// slice is not modified.
func Filter(rows []Row, query string, nickname bool) []Row {
	q := strings.ToLower(query)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if q == "" || matches(r, q, nickname) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r Row, q string, nickname bool) bool {
	if strings.Contains(strings.ToLower(r.Name()), q) {
		return true
	}
	return nickname && strings.Contains(strings.ToLower(r.Nickname()), q)
}

// Sort returns a stably sorted copy of rows. Names compare under the
// collation rules of tag.
func Sort(rows []Row, key config.SortKey, tag language.Tag) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	switch key {
	case config.SortName:
		col := collate.New(tag, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(out[i].Name(), out[j].Name()) < 0
		})
	case config.SortNickname:
		col := collate.New(tag, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(nicknameOrName(out[i]), nicknameOrName(out[j])) < 0
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return wateringLess(out[i].Watering, out[j].Watering)
		})
	}
	return out
}

// wateringLess orders by value with nil after every number; two nils are
// equal so the stable sort keeps their order.
func wateringLess(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

func nicknameOrName(r Row) string {
	if n := r.Nickname(); n != "" {
		return n
	}
	return r.Name()
}
