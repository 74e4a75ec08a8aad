package card

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/otel"
)

// DefaultDebounce is the quiet period after the last relevant change
// notification before a refresh runs.
const DefaultDebounce = 300 * time.Millisecond

// Relevant reports whether a change to entityID can affect the list.
func Relevant(entityID string) bool {
	if entityID == "" {
		return false
	}
	return strings.HasPrefix(entityID, PlantPrefix) ||
		strings.HasPrefix(entityID, "sensor.") ||
		strings.Contains(entityID, "watering")
}

// Debouncer owns the card's single state_changed subscription and turns
// bursts of relevant notifications into one call to fire.
//
// The subscription is attempted at most once per Debouncer; Detach stops
// the timer and releases it at most once.
type Debouncer struct {
	bridge hass.Bridge
	delay  time.Duration
	fire   func()
	events *otel.Logger
	log    *log.Logger

	mu        sync.Mutex
	attempted bool
	detached  bool
	sub       hass.Subscription
	timer     *time.Timer
	gen       uint64 // bumped on every arm; a timer only fires for its own gen
}

// NewDebouncer builds a Debouncer. delay <= 0 uses DefaultDebounce.
func NewDebouncer(bridge hass.Bridge, delay time.Duration, fire func(), events *otel.Logger, logger *log.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Debouncer{
		bridge: bridge,
		delay:  delay,
		fire:   fire,
		events: events,
		log:    logger,
	}
}

// Attach subscribes to state_changed the first time it is called; later
// calls do nothing. A failed subscribe is returned and never retried.
func (d *Debouncer) Attach(ctx context.Context) error {
	d.mu.Lock()
	if d.attempted || d.detached {
		d.mu.Unlock()
		return nil
	}
	d.attempted = true
	d.mu.Unlock()

	sub, err := d.bridge.SubscribeEvents(ctx, hass.EventStateChanged, d.handle)
	if err != nil {
		d.log.Warn("change subscription failed; refreshing on snapshot updates only", "err", err)
		d.events.Error(otel.KindSubscribeError, "debounce", err)
		return err
	}

	d.mu.Lock()
	if d.detached {
		// Detach ran while we were subscribing.
		d.mu.Unlock()
		d.release(sub)
		return nil
	}
	d.sub = sub
	d.mu.Unlock()
	return nil
}

// Subscribed reports whether a live subscription is held.
func (d *Debouncer) Subscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sub != nil
}

func (d *Debouncer) handle(ev hass.Event) {
	id := ev.StateChange().EntityID
	if !Relevant(id) {
		return
	}
	d.Notify(id)
}

// Notify (re)arms the timer for a relevant change to entityID.
func (d *Debouncer) Notify(entityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.elapsed(gen) })

	if otel.TraceEnabled() {
		d.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindDebounceArm, Comp: "debounce", Entity: entityID})
	}
}

// elapsed fires only if no newer Notify or Detach happened since gen was
// armed. Timer.Stop cannot recall a callback that already started.
func (d *Debouncer) elapsed(gen uint64) {
	d.mu.Lock()
	if d.detached || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindDebounceFire, Comp: "debounce"})
	d.fire()
}

// Detach cancels any pending refresh and releases the subscription.
func (d *Debouncer) Detach() {
	d.mu.Lock()
	if d.detached {
		d.mu.Unlock()
		return
	}
	d.detached = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	sub := d.sub
	d.sub = nil
	d.mu.Unlock()

	if sub != nil {
		d.release(sub)
	}
}

// release unsubscribes, swallowing both errors and panics.
func (d *Debouncer) release(sub hass.Subscription) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unsubscribe panicked: %v", r)
			d.log.Warn("release failed", "err", err)
			d.events.Error(otel.KindReleaseError, "debounce", err)
		}
	}()
	if err := sub.Unsubscribe(); err != nil {
		d.log.Warn("release failed", "err", err)
		d.events.Error(otel.KindReleaseError, "debounce", err)
	}
}
