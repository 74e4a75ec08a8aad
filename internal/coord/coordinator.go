// Package coord keeps a card in sync with Home Assistant in the background.
package coord

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/logging"
	"github.com/abelbrown/verdant/internal/otel"
	"github.com/abelbrown/verdant/internal/ui"
)

// DefaultResyncInterval is the time between full state resyncs.
const DefaultResyncInterval = 5 * time.Minute

// resyncTimeout bounds each get_states round trip.
const resyncTimeout = 30 * time.Second

// resyncer interface for dependency injection (testing).
// *hass.Client implements it.
type resyncer interface {
	Resync(ctx context.Context) (map[string]hass.EntityState, error)
}

// sender is the part of *tea.Program the coordinator uses.
type sender interface {
	Send(msg tea.Msg)
}

// Coordinator manages the card's lifecycle and periodic resyncs.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	bridge   resyncer
	interval time.Duration
	events   *otel.Logger
	log      *log.Logger

	program atomic.Pointer[senderBox]
	wg      sync.WaitGroup
}

type senderBox struct{ s sender }

// New creates a Coordinator. interval <= 0 uses DefaultResyncInterval.
func New(bridge resyncer, interval time.Duration, events *otel.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	return &Coordinator{
		bridge:   bridge,
		interval: interval,
		events:   events,
		log:      logging.WithPrefix("coord"),
	}
}

// Present implements card.Presenter by forwarding rows to the program.
// Rows presented before Start are not forwarded.
func (c *Coordinator) Present(rows []card.Row) {
	if box := c.program.Load(); box != nil && box.s != nil {
		box.s.Send(ui.RowsRendered{Rows: rows})
	}
}

// Start attaches the card, then resyncs every interval until ctx is
// cancelled, detaching the card on the way out. program may be nil.
func (c *Coordinator) Start(ctx context.Context, crd *card.Card, program sender) {
	c.program.Store(&senderBox{s: program})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer crd.Detach()

		crd.Attach(ctx)
		c.send(ui.Attached{Subscribed: crd.Subscribed()})

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.resync(ctx, crd)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// resync reloads every entity state and refreshes the card from it.
// A failed resync keeps the previous snapshot.
func (c *Coordinator) resync(ctx context.Context, crd *card.Card) {
	rctx, cancel := context.WithTimeout(ctx, resyncTimeout)
	defer cancel()

	start := time.Now()
	states, err := c.bridge.Resync(rctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("resync failed", "err", err)
		c.events.Error(otel.KindHassError, "coord", err)
		c.send(ui.Resynced{Err: err})
		return
	}
	c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindHassResync, Comp: "coord", Count: len(states), Dur: time.Since(start)})
	crd.SetSnapshot(ctx)
	c.send(ui.Resynced{})
}

func (c *Coordinator) send(msg tea.Msg) {
	if box := c.program.Load(); box != nil && box.s != nil {
		box.s.Send(msg)
	}
}
