package card

import "github.com/abelbrown/verdant/internal/config"

const (
	minSize     = 1
	maxSize     = 12
	showAllSize = 6
)

// Size is the layout height hint in dashboard rows: a header row, a
// search row and one row per configured plant, clamped to [1, 12].
func Size(c config.Card) int {
	if c.ShowAll {
		return showAllSize
	}
	return min(max(2+len(c.Entities), minSize), maxSize)
}
