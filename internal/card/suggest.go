package card

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/abelbrown/verdant/internal/hass"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean" for a configured id that is not in the snapshot.
const maxSuggestDistance = 4

// suggestPlant returns the known plant id closest to id, or "" when
// nothing is close enough. Ties go to the lexically smaller id.
func suggestPlant(id string, snapshot map[string]hass.EntityState) string {
	ids := make([]string, 0, len(snapshot))
	for known := range snapshot {
		if strings.HasPrefix(known, PlantPrefix) {
			ids = append(ids, known)
		}
	}
	sort.Strings(ids)

	best, bestDist := "", maxSuggestDistance+1
	for _, known := range ids {
		if d := levenshtein.ComputeDistance(id, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}
