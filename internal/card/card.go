package card

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/i18n"
	"github.com/abelbrown/verdant/internal/otel"
)

// Card is one live plant list bound to a bridge. It owns the refresh
// pipeline, the change subscription and the row actions.
type Card struct {
	cfg    config.Card
	bridge hass.Bridge
	loc    *i18n.Localizer
	labels Labels

	pipeline   *Pipeline
	debouncer  *Debouncer
	dispatcher *Dispatcher
	log        *log.Logger

	mu    sync.Mutex
	query Query
	ctx   context.Context // background refreshes run under the Attach context
}

type options struct {
	events    *otel.Logger
	logger    *log.Logger
	journal   Journal
	confirmer Confirmer
	delay     time.Duration
	loc       *i18n.Localizer
}

// Option configures a Card.
type Option func(*options)

// WithEvents records pipeline events.
func WithEvents(l *otel.Logger) Option { return func(o *options) { o.events = l } }

// WithLogger sets the text logger.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithJournal records every service call.
func WithJournal(j Journal) Option { return func(o *options) { o.journal = j } }

// WithConfirmer answers mark-done prompts.
func WithConfirmer(c Confirmer) Option { return func(o *options) { o.confirmer = c } }

// WithDebounceDelay overrides DefaultDebounce.
func WithDebounceDelay(d time.Duration) Option { return func(o *options) { o.delay = d } }

// WithLocalizer overrides the localizer picked from the card language.
func WithLocalizer(l *i18n.Localizer) Option { return func(o *options) { o.loc = l } }

// New validates cfg and builds a detached card. It fails with
// config.ErrNoSelection when neither show_all nor entities is set.
func New(cfg config.Card, bridge hass.Bridge, presenter Presenter, opts ...Option) (*Card, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SortBy == "" {
		cfg.SortBy = config.SortWatering
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	if o.loc == nil {
		o.loc = i18n.New(cfg.Language)
	}

	c := &Card{
		cfg:    cfg,
		bridge: bridge,
		loc:    o.loc,
		labels: NewLabels(cfg, o.loc),
		log:    o.logger,
		query:  Query{Sort: cfg.SortBy},
		ctx:    context.Background(),
	}
	c.pipeline = NewPipeline(bridge, cfg, presenter, o.loc.Tag(), o.events, o.logger)
	c.dispatcher = NewDispatcher(bridge, cfg, o.loc, o.confirmer, o.journal, o.events, o.logger)
	c.debouncer = NewDebouncer(bridge, o.delay, c.refreshBackground, o.events, o.logger)
	return c, nil
}

// Attach subscribes to changes (once per card) and runs the first refresh.
// A failed subscription is logged; the card then refreshes only when
// told to.
func (c *Card) Attach(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	_ = c.debouncer.Attach(ctx)
	c.Refresh(ctx)
}

// Detach cancels a pending debounced refresh and releases the
// subscription. Refreshes already running still complete.
func (c *Card) Detach() {
	c.debouncer.Detach()
}

// SetQuery replaces the search text and refreshes.
func (c *Card) SetQuery(ctx context.Context, text string) bool {
	c.mu.Lock()
	c.query.Text = text
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetSort replaces the sort key and refreshes. Keys the card does not
// offer are rejected with config.ErrUnknownSort.
func (c *Card) SetSort(ctx context.Context, key config.SortKey) error {
	cfg := c.cfg
	cfg.SortBy = key
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.query.Sort = key
	c.mu.Unlock()
	c.Refresh(ctx)
	return nil
}

// CycleSort moves to the next offered sort key and refreshes.
func (c *Card) CycleSort(ctx context.Context) config.SortKey {
	keys := c.cfg.SortKeys()
	c.mu.Lock()
	next := keys[0]
	for i, k := range keys {
		if k == c.query.Sort {
			next = keys[(i+1)%len(keys)]
			break
		}
	}
	c.query.Sort = next
	c.mu.Unlock()
	c.Refresh(ctx)
	return next
}

// SetSnapshot refreshes after the bridge's snapshot was replaced.
func (c *Card) SetSnapshot(ctx context.Context) bool {
	return c.Refresh(ctx)
}

// Refresh runs the pipeline with the current query and reports whether
// its rows were presented.
func (c *Card) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	seq := c.pipeline.Next()
	q := c.query
	c.mu.Unlock()
	return c.pipeline.RunSeq(ctx, seq, q)
}

func (c *Card) refreshBackground() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	c.Refresh(ctx)
}

// Query is the current search text and sort key.
func (c *Card) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Rows is the last presented row set.
func (c *Card) Rows() []Row {
	return c.pipeline.Rows()
}

// Triggers binds the row actions for row.
func (c *Card) Triggers(row Row) Triggers {
	return c.dispatcher.Triggers(row)
}

// Dispatcher exposes the action dispatcher for callers that only have ids.
func (c *Card) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Labels are the card's resolved strings.
func (c *Card) Labels() Labels {
	return c.labels
}

// Config is the validated card block.
func (c *Card) Config() config.Card {
	return c.cfg
}

// Size is the layout height hint for this card.
func (c *Card) Size() int {
	return Size(c.cfg)
}

// Subscribed reports whether the change subscription is live.
func (c *Card) Subscribed() bool {
	return c.debouncer.Subscribed()
}
