// Package card is the live plant list: it joins Home Assistant state with
// per-plant metadata, filters and sorts the rows, re-renders on relevant
// change notifications, and dispatches the per-row actions.
package card

import (
	"math"
	"strconv"
	"strings"

	"github.com/abelbrown/verdant/internal/hass"
)

// PlantPrefix is the namespace of plant entities.
const PlantPrefix = "plant."

// Row is one plant joined with its metadata and watering sensor.
// Watering is nil whenever WateringSensor is nil.
type Row struct {
	State    hass.EntityState
	Metadata hass.Metadata

	WateringSensor *string
	WateringState  *string
	Watering       *float64
}

// EntityID of the plant.
func (r Row) EntityID() string {
	return r.State.EntityID
}

// Name is the displayed name: friendly_name, else the entity id.
func (r Row) Name() string {
	return r.State.FriendlyName()
}

// Nickname is the optional nickname attribute.
func (r Row) Nickname() string {
	return strings.TrimSpace(r.State.Attr("nickname"))
}

// ImageURL prefers the metadata image, then the entity picture.
func (r Row) ImageURL() string {
	if u := r.Metadata.ImageURL(); u != "" {
		return u
	}
	return r.State.Attr("entity_picture")
}

// Join builds the row for one plant. meta is nil when the lookup failed.
// The sensor named by the metadata is looked up in snapshot; a sensor
// missing from it leaves the watering fields nil but keeps the reference.
func Join(st hass.EntityState, meta *hass.Metadata, snapshot map[string]hass.EntityState) Row {
	row := Row{State: st}
	if meta == nil {
		return row
	}
	row.Metadata = *meta

	sensorID := strings.TrimSpace(meta.WateringSensor)
	if sensorID == "" {
		return row
	}
	row.WateringSensor = &sensorID

	sensor, ok := snapshot[sensorID]
	if !ok {
		return row
	}
	state := sensor.State
	row.WateringState = &state
	row.Watering = parseWatering(state)
	return row
}

// parseWatering accepts finite numbers only; "unknown", "unavailable",
// NaN and infinities are nil.
func parseWatering(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
