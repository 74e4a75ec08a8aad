package card

import (
	"strconv"

	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/i18n"
)

// Labels are the resolved user-facing strings of one card.
type Labels struct {
	SearchPlaceholder string
	NoWatering        string
	Done              string
	Snooze            string
	NoPlants          string
	WateringDue       string

	loc *i18n.Localizer
}

// NewLabels resolves every label: card override, then localized, then key.
func NewLabels(c config.Card, loc *i18n.Localizer) Labels {
	return Labels{
		SearchPlaceholder: loc.Text(c.SearchPlaceholder, i18n.KeySearchPlaceholder, nil),
		NoWatering:        loc.Text(c.NoWateringText, i18n.KeyNoWatering, nil),
		Done:              loc.Text(c.DoneLabel, i18n.KeyDone, nil),
		Snooze:            loc.Text(c.SnoozeLabel, i18n.KeySnooze, nil),
		NoPlants:          loc.Text("", i18n.KeyNoPlants, nil),
		WateringDue:       loc.Text("", i18n.KeyWateringDue, nil),
		loc:               loc,
	}
}

// Watering describes a row's countdown. A missing sensor and a failed
// metadata lookup read the same.
func (l Labels) Watering(r Row) string {
	if r.Watering == nil {
		return l.NoWatering
	}
	if *r.Watering <= 0 {
		return l.WateringDue
	}
	value := strconv.FormatFloat(*r.Watering, 'f', -1, 64)
	return l.loc.Text("", i18n.KeyWateringIn, map[string]string{"value": value})
}

// SortName is the localized name of a sort key.
func (l Labels) SortName(k config.SortKey) string {
	switch k {
	case config.SortName:
		return l.loc.Text("", i18n.KeySortName, nil)
	case config.SortNickname:
		return l.loc.Text("", i18n.KeySortNickname, nil)
	default:
		return l.loc.Text("", i18n.KeySortWatering, nil)
	}
}
