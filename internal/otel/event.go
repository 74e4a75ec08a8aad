// Package otel records structured pipeline events for verdant.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// them asynchronously through a buffered channel drained by one goroutine.
// An optional RingBuffer keeps recent events for live inspection.
package otel

import (
	"encoding/json"
	"time"
)

// Level is event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind is "<subsystem>.<action>".
type EventKind string

const (
	// Render pipeline
	KindRefreshStart   EventKind = "refresh.start"
	KindRefreshApplied EventKind = "refresh.applied"
	KindRefreshStale   EventKind = "refresh.stale"
	KindMetadataError  EventKind = "metadata.error"
	KindEntityMissing  EventKind = "refresh.entity_missing"

	// Debouncer
	KindDebounceArm    EventKind = "debounce.arm"
	KindDebounceFire   EventKind = "debounce.fire"
	KindSubscribeError EventKind = "debounce.subscribe_error"
	KindReleaseError   EventKind = "debounce.release_error"

	// Actions
	KindActionDispatch EventKind = "action.dispatch"
	KindActionDeclined EventKind = "action.declined"
	KindActionError    EventKind = "action.error"

	// Home Assistant connection
	KindHassConnect EventKind = "hass.connect"
	KindHassResync  EventKind = "hass.resync"
	KindHassError   EventKind = "hass.error"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is one observability record. Only Kind and Time are required.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "card", "debounce", "actions", "coord", "main"
	SessionID string         `json:"session_id,omitempty"`
	Seq       uint64         `json:"seq,omitempty"` // refresh sequence number
	Entity    string         `json:"entity,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"`
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
