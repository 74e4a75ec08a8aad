// Package i18n resolves user-facing strings for the dashboard.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Keys used by the dashboard.
const (
	KeySearchPlaceholder = "card.search_placeholder"
	KeyNoWatering        = "card.no_watering_sensor"
	KeyDone              = "card.done"
	KeySnooze            = "card.snooze"
	KeyConfirmMarkDone   = "card.confirm_mark_done"
	KeyWateringDue       = "card.watering_due"
	KeyWateringIn        = "card.watering_in"
	KeyNoPlants          = "card.no_plants"
	KeySortWatering      = "card.sort.watering"
	KeySortName          = "card.sort.name"
	KeySortNickname      = "card.sort.nickname"
)

var tables = map[language.Tag]map[string]string{
	language.English: {
		KeySearchPlaceholder: "Search plants…",
		KeyNoWatering:        "No watering sensor linked",
		KeyDone:              "Done",
		KeySnooze:            "Snooze 1h",
		KeyConfirmMarkDone:   "Mark {name} as watered?",
		KeyWateringDue:       "Water now",
		KeyWateringIn:        "Water in {value}",
		KeyNoPlants:          "No plants to show",
		KeySortWatering:      "watering",
		KeySortName:          "name",
		KeySortNickname:      "nickname",
	},
	language.French: {
		KeySearchPlaceholder: "Rechercher une plante…",
		KeyNoWatering:        "Aucun capteur d'arrosage lié",
		KeyDone:              "Fait",
		KeySnooze:            "Reporter 1h",
		KeyConfirmMarkDone:   "Marquer {name} comme arrosée ?",
		KeyWateringDue:       "À arroser",
		KeyWateringIn:        "Arrosage dans {value}",
		KeyNoPlants:          "Aucune plante à afficher",
		KeySortWatering:      "arrosage",
		KeySortName:          "nom",
		KeySortNickname:      "surnom",
	},
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.French})

// Localizer looks strings up in one language's table.
type Localizer struct {
	tag   language.Tag
	table map[string]string
}

// New picks the best supported table for lang (a BCP 47 tag such as
// "fr-BE"). Unknown or empty tags fall back to English.
func New(lang string) *Localizer {
	_, idx := language.MatchStrings(matcher, lang)
	tag := []language.Tag{language.English, language.French}[idx]
	return &Localizer{tag: tag, table: tables[tag]}
}

// Tag is the matched language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Localize returns the string for key with {var} placeholders replaced.
// ok is false when the key is unknown.
func (l *Localizer) Localize(key string, vars map[string]string) (string, bool) {
	s, ok := l.table[key]
	if !ok {
		return "", false
	}
	return Interpolate(s, vars), true
}

// Interpolate replaces {name} placeholders. Unknown placeholders are kept.
func Interpolate(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Text resolves a label: a non-empty override wins, then the localized
// string, then the key itself.
func (l *Localizer) Text(override, key string, vars map[string]string) string {
	if strings.TrimSpace(override) != "" {
		return Interpolate(override, vars)
	}
	if s, ok := l.Localize(key, vars); ok {
		return s
	}
	return key
}
