package card

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/i18n"
	"github.com/abelbrown/verdant/internal/otel"
)

// Service names of the plant integration.
const (
	ServiceDomain      = "plant"
	ServiceMarkWatered = "mark_watered"
	ServiceSnooze      = "snooze"

	// SnoozeHours is the fixed snooze duration.
	SnoozeHours = 1
)

// ErrDeclined is returned by MarkDone when the user answers no.
var ErrDeclined = errors.New("card: mark done declined")

// Confirmer asks the user a yes/no question. It blocks until answered or
// ctx is done; a cancelled prompt counts as no.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Journal records dispatched service calls. callErr is the call's
// outcome, nil on success.
type Journal interface {
	Record(ctx context.Context, service, entityID string, callErr error) error
}

// Triggers are the two actions bound to one row.
type Triggers struct {
	MarkDone func(ctx context.Context) error
	Snooze   func(ctx context.Context) error
}

// Dispatcher builds row actions that call the plant services.
type Dispatcher struct {
	bridge    hass.Bridge
	card      config.Card
	loc       *i18n.Localizer
	confirmer Confirmer
	journal   Journal
	events    *otel.Logger
	log       *log.Logger
}

// NewDispatcher wires a dispatcher. A nil confirmer declines every prompt,
// so mark-done only goes through when confirmation is disabled.
func NewDispatcher(bridge hass.Bridge, card config.Card, loc *i18n.Localizer, confirmer Confirmer, journal Journal, events *otel.Logger, logger *log.Logger) *Dispatcher {
	if loc == nil {
		loc = i18n.New(card.Language)
	}
	if confirmer == nil {
		confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{
		bridge:    bridge,
		card:      card,
		loc:       loc,
		confirmer: confirmer,
		journal:   journal,
		events:    events,
		log:       logger,
	}
}

// Triggers binds both actions to row.
func (d *Dispatcher) Triggers(row Row) Triggers {
	id, name := row.EntityID(), row.Name()
	return Triggers{
		MarkDone: func(ctx context.Context) error { return d.MarkDone(ctx, id, name) },
		Snooze:   func(ctx context.Context) error { return d.Snooze(ctx, id) },
	}
}

// Prompt is the confirmation text for marking name as watered.
func (d *Dispatcher) Prompt(name string) string {
	return d.loc.Text(d.card.ConfirmMarkDone, i18n.KeyConfirmMarkDone, map[string]string{"name": name})
}

// MarkDone asks for confirmation unless disabled, then calls
// plant.mark_watered for entityID.
func (d *Dispatcher) MarkDone(ctx context.Context, entityID, name string) error {
	if d.card.ConfirmDone() && !d.confirmer.Confirm(ctx, d.Prompt(name)) {
		d.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindActionDeclined, Comp: "actions", Entity: entityID})
		return ErrDeclined
	}
	return d.call(ctx, ServiceMarkWatered, entityID, nil)
}

// Snooze calls plant.snooze for entityID. It never asks.
func (d *Dispatcher) Snooze(ctx context.Context, entityID string) error {
	return d.call(ctx, ServiceSnooze, entityID, map[string]any{"hours": SnoozeHours})
}

func (d *Dispatcher) call(ctx context.Context, service, entityID string, params map[string]any) error {
	data := map[string]any{"entity_id": entityID}
	for k, v := range params {
		data[k] = v
	}

	start := time.Now()
	err := d.bridge.CallService(ctx, ServiceDomain, service, data)
	ev := otel.Event{
		Level:  otel.LevelInfo,
		Kind:   otel.KindActionDispatch,
		Comp:   "actions",
		Entity: entityID,
		Msg:    ServiceDomain + "." + service,
		Dur:    time.Since(start),
	}
	if err != nil {
		ev.Level, ev.Kind, ev.Err = otel.LevelError, otel.KindActionError, err.Error()
		d.log.Error("service call failed", "service", ev.Msg, "entity", entityID, "err", err)
	} else {
		d.log.Info("service called", "service", ev.Msg, "entity", entityID)
	}
	d.events.Emit(ev)

	if d.journal != nil {
		if jerr := d.journal.Record(ctx, service, entityID, err); jerr != nil {
			d.log.Warn("journal write failed", "err", jerr)
		}
	}
	if err != nil {
		return fmt.Errorf("%s.%s %s: %w", ServiceDomain, service, entityID, err)
	}
	return nil
}
