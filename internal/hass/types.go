// Package hass talks to a Home Assistant instance over its websocket API.
//
// The Client keeps a live copy of every entity state, fans out
// subscribed events, and exposes the plant integration's metadata lookup
// and service calls.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// EventStateChanged is the event type emitted whenever an entity's state
// or attributes change.
const EventStateChanged = "state_changed"

var (
	// ErrAuthInvalid is returned by Dial when Home Assistant rejects the token.
	ErrAuthInvalid = errors.New("hass: access token rejected")

	// ErrClosed is returned by commands issued after the connection closed.
	ErrClosed = errors.New("hass: connection closed")
)

// EntityState is one entity as reported by get_states or a state_changed
// event. Attributes keep their raw JSON types.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

// Attr returns a string attribute, or "" when missing or not a string.
func (e EntityState) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	s, _ := e.Attributes[name].(string)
	return s
}

// FriendlyName is the display name, falling back to the entity id.
func (e EntityState) FriendlyName() string {
	if name := strings.TrimSpace(e.Attr("friendly_name")); name != "" {
		return name
	}
	return e.EntityID
}

// Domain is the dotted prefix of the entity id ("plant", "sensor", ...).
func (e EntityState) Domain() string {
	domain, _, _ := strings.Cut(e.EntityID, ".")
	return domain
}

// Image is a nested image reference inside plant metadata.
type Image struct {
	URL string `json:"url"`
}

// Metadata is the payload returned by the plant/get_info command.
// Only WateringSensor and Image drive the dashboard; the rest is shown
// as detail when present.
type Metadata struct {
	WateringSensor string `json:"watering_sensor,omitempty"`
	Image          *Image `json:"image,omitempty"`
	Species        string `json:"pid,omitempty"`
	ScientificName string `json:"scientific_name,omitempty"`
	Area           string `json:"area,omitempty"`
	NextWatering   string `json:"next_watering,omitempty"`
	LastWatered    string `json:"last_watered,omitempty"`
	SnoozeUntil    string `json:"snooze_until,omitempty"`
}

// ImageURL walks the optional image chain.
func (m *Metadata) ImageURL() string {
	if m == nil || m.Image == nil {
		return ""
	}
	return m.Image.URL
}

// Event is a Home Assistant bus event.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired string          `json:"time_fired"`
}

// StateChange is the data payload of a state_changed event.
type StateChange struct {
	EntityID string       `json:"entity_id"`
	NewState *EntityState `json:"new_state"`
	OldState *EntityState `json:"old_state"`
}

// StateChange decodes the event data as a state change. Events of other
// types, or with malformed data, yield an empty StateChange.
func (e Event) StateChange() StateChange {
	var sc StateChange
	if e.EventType != EventStateChanged || len(e.Data) == 0 {
		return sc
	}
	_ = json.Unmarshal(e.Data, &sc)
	return sc
}

// Subscription is a live event subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bridge is the subset of Home Assistant the dashboard depends on.
// *Client implements it; tests supply fakes.
type Bridge interface {
	// States returns a copy of every known entity keyed by entity id.
	States() map[string]EntityState
	// SubscribeEvents delivers raw events of eventType to handler until
	// the subscription is released.
	SubscribeEvents(ctx context.Context, eventType string, handler func(Event)) (Subscription, error)
	// FetchMetadata looks up plant metadata for one entity.
	FetchMetadata(ctx context.Context, entityID string) (*Metadata, error)
	// CallService invokes domain.service with the given service data.
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}
