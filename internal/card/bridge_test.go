package card

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/abelbrown/verdant/internal/hass"
)

// fakeBridge implements hass.Bridge in memory.
type fakeBridge struct {
	mu       sync.Mutex
	states   map[string]hass.EntityState
	metas    map[string]*hass.Metadata
	metaErrs map[string]error
	gates    map[string]chan struct{} // FetchMetadata blocks until closed
	handler  func(hass.Event)
	calls    []serviceCall
	callErr  error

	subErr     error
	unsubErr   error
	unsubPanic bool

	subscribes   atomic.Int32
	unsubscribes atomic.Int32
	fetches      atomic.Int32
}

type serviceCall struct {
	Domain, Service string
	Data            map[string]any
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		states:   make(map[string]hass.EntityState),
		metas:    make(map[string]*hass.Metadata),
		metaErrs: make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

// plant adds a plant whose metadata links sensor.<slug>_watering, and
// that sensor with the given state. An empty state adds no sensor.
func (b *fakeBridge) plant(id, name, sensorState string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[id] = hass.EntityState{
		EntityID:   id,
		State:      "ok",
		Attributes: map[string]any{"friendly_name": name},
	}
	sensor := "sensor." + id[len(PlantPrefix):] + "_watering"
	b.metas[id] = &hass.Metadata{WateringSensor: sensor}
	if sensorState != "" {
		b.states[sensor] = hass.EntityState{EntityID: sensor, State: sensorState}
	}
}

func (b *fakeBridge) setState(id, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.states[id]
	st.EntityID, st.State = id, state
	b.states[id] = st
}

func (b *fakeBridge) States() map[string]hass.EntityState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]hass.EntityState, len(b.states))
	for k, v := range b.states {
		out[k] = v
	}
	return out
}

func (b *fakeBridge) SubscribeEvents(ctx context.Context, eventType string, handler func(hass.Event)) (hass.Subscription, error) {
	b.subscribes.Add(1)
	if b.subErr != nil {
		return nil, b.subErr
	}
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	return fakeSub{b}, nil
}

func (b *fakeBridge) FetchMetadata(ctx context.Context, id string) (*hass.Metadata, error) {
	b.mu.Lock()
	gate := b.gates[id]
	m, err := b.metas[id], b.metaErrs[id]
	b.mu.Unlock()
	b.fetches.Add(1)
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (b *fakeBridge) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, serviceCall{domain, service, data})
	return b.callErr
}

func (b *fakeBridge) serviceCalls() []serviceCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]serviceCall(nil), b.calls...)
}

// emit delivers a state_changed event for id to the subscriber.
func (b *fakeBridge) emit(id string) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h == nil {
		return
	}
	data, _ := json.Marshal(map[string]any{"entity_id": id})
	h(hass.Event{EventType: hass.EventStateChanged, Data: data})
}

type fakeSub struct{ b *fakeBridge }

func (s fakeSub) Unsubscribe() error {
	s.b.unsubscribes.Add(1)
	if s.b.unsubPanic {
		panic("unsubscribe exploded")
	}
	return s.b.unsubErr
}

var errLookup = errors.New("lookup failed")

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
