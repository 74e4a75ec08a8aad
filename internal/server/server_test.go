package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/otel"
	"github.com/abelbrown/verdant/internal/store"
)

type serviceCall struct {
	domain, service string
	data            map[string]any
}

// mockBridge serves a fixed snapshot and records service calls.
type mockBridge struct {
	states  map[string]hass.EntityState
	metas   map[string]*hass.Metadata
	callErr error

	mu    sync.Mutex
	calls []serviceCall
}

func (b *mockBridge) States() map[string]hass.EntityState {
	out := make(map[string]hass.EntityState, len(b.states))
	for k, v := range b.states {
		out[k] = v
	}
	return out
}

func (b *mockBridge) SubscribeEvents(ctx context.Context, eventType string, handler func(hass.Event)) (hass.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *mockBridge) FetchMetadata(ctx context.Context, id string) (*hass.Metadata, error) {
	if m, ok := b.metas[id]; ok {
		return m, nil
	}
	return nil, errors.New("unknown plant")
}

func (b *mockBridge) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, serviceCall{domain, service, data})
	return b.callErr
}

func (b *mockBridge) serviceCalls() []serviceCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]serviceCall(nil), b.calls...)
}

func newBridge() *mockBridge {
	return &mockBridge{
		states: map[string]hass.EntityState{
			"plant.fern":           {EntityID: "plant.fern", State: "ok", Attributes: map[string]any{"friendly_name": "Fern"}},
			"plant.aloe":           {EntityID: "plant.aloe", State: "problem", Attributes: map[string]any{"friendly_name": "Aloe"}},
			"sensor.fern_watering": {EntityID: "sensor.fern_watering", State: "2"},
		},
		metas: map[string]*hass.Metadata{
			"plant.fern": {WateringSensor: "sensor.fern_watering"},
		},
	}
}

type fixture struct {
	bridge *mockBridge
	card   *card.Card
	store  *store.Store
	ring   *otel.RingBuffer
	srv    *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "verdant.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ring := otel.NewRingBuffer(64)
	events := otel.NewNullLogger()
	events.SetRingBuffer(ring)
	t.Cleanup(events.Close)

	b := newBridge()
	c, err := card.New(config.Card{ShowAll: true}, b, nil,
		card.WithConfirmer(Confirmer()),
		card.WithJournal(st),
		card.WithEvents(events))
	if err != nil {
		t.Fatalf("card.New: %v", err)
	}
	c.Refresh(context.Background())

	return &fixture{bridge: b, card: c, store: st, ring: ring, srv: New(c, st, ring)}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["status"] != "ok" || got["plants"] != float64(2) {
		t.Errorf("health = %v", got)
	}
}

func TestPlants(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/plants", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[plantsJSON](t, w)
	if got.Size != 6 || got.Sort != "watering" {
		t.Errorf("size = %d sort = %q", got.Size, got.Sort)
	}
	if len(got.Plants) != 2 {
		t.Fatalf("plants = %d, want 2", len(got.Plants))
	}
	fern, aloe := got.Plants[0], got.Plants[1]
	if fern.EntityID != "plant.fern" || fern.Watering == nil || *fern.Watering != 2 {
		t.Errorf("first plant = %+v, want fern with watering 2", fern)
	}
	if fern.WateringLabel != "Water in 2" {
		t.Errorf("label = %q", fern.WateringLabel)
	}
	if aloe.WateringSensor != nil || aloe.WateringLabel != "No watering sensor linked" {
		t.Errorf("aloe = %+v", aloe)
	}
}

func TestQuery(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/query", `{"sort":"name"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[plantsJSON](t, w)
	if got.Plants[0].Name != "Aloe" {
		t.Errorf("first = %q, want Aloe", got.Plants[0].Name)
	}

	w = f.do(t, http.MethodPost, "/api/query", `{"text":"FER"}`)
	got = decode[plantsJSON](t, w)
	if len(got.Plants) != 1 || got.Plants[0].Name != "Fern" || got.Query != "FER" {
		t.Errorf("filtered = %+v", got)
	}

	w = f.do(t, http.MethodPost, "/api/query", `{"sort":"nickname"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("nickname sort without the extension: status = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/query", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", w.Code)
	}
}

func TestDoneRequiresConfirmation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/plants/plant.fern/done", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if got := decode[map[string]string](t, w); got["prompt"] != "Mark Fern as watered?" {
		t.Errorf("prompt = %q", got["prompt"])
	}
	if len(f.bridge.serviceCalls()) != 0 {
		t.Fatal("service called without confirmation")
	}

	w = f.do(t, http.MethodPost, "/api/plants/plant.fern/done?confirm=yes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	calls := f.bridge.serviceCalls()
	if len(calls) != 1 || calls[0].service != "mark_watered" || calls[0].data["entity_id"] != "plant.fern" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestSnooze(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/plants/plant.aloe/snooze", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	calls := f.bridge.serviceCalls()
	if len(calls) != 1 || calls[0].service != "snooze" || calls[0].data["hours"] != 1 {
		t.Errorf("calls = %+v", calls)
	}
}

func TestActionOnUnlistedPlant(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/plants/plant.ghost/snooze", "/api/plants/plant.ghost/done?confirm=yes"} {
		if w := f.do(t, http.MethodPost, path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
	}
	if len(f.bridge.serviceCalls()) != 0 {
		t.Error("service called for an unlisted plant")
	}
}

func TestServiceErrorIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.bridge.callErr = errors.New("service not found")
	w := f.do(t, http.MethodPost, "/api/plants/plant.fern/snooze", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "service not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestActionsJournal(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/plants/plant.fern/snooze", "")
	f.do(t, http.MethodPost, "/api/plants/plant.aloe/snooze", "")

	w := f.do(t, http.MethodGet, "/api/actions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[[]store.Action](t, w); len(got) != 2 {
		t.Errorf("actions = %d, want 2", len(got))
	}

	w = f.do(t, http.MethodGet, "/api/actions?entity_id=plant.aloe&limit=5", "")
	got := decode[[]store.Action](t, w)
	if len(got) != 1 || got[0].EntityID != "plant.aloe" || !got[0].OK {
		t.Errorf("aloe actions = %+v", got)
	}
}

func TestActionsWithoutJournal(t *testing.T) {
	f := newFixture(t)
	srv := New(f.card, nil, nil)
	for _, path := range []string{"/api/actions", "/debug/events"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
	}
}

func TestDebugEvents(t *testing.T) {
	f := newFixture(t)
	f.ring.Push(otel.Event{Kind: otel.KindHassResync, Time: time.Now()})
	// The event logger drains into the ring asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for len(f.ring.Filter(otel.KindRefreshApplied)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh.applied never reached the ring")
		}
		time.Sleep(time.Millisecond)
	}

	w := f.do(t, http.MethodGet, "/debug/events?kind=refresh.applied", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[[]map[string]any](t, w)
	if len(got) != 1 {
		t.Fatalf("events = %d, want the one applied refresh", len(got))
	}
	if got[0]["kind"] != "refresh.applied" {
		t.Errorf("kind = %v", got[0]["kind"])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
