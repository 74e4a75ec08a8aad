package card

// Goroutine safety:
// Run may be called concurrently. Each call takes a sequence number from
// requested before touching the bridge. Callers that read their query
// from shared state reserve the number with Next under the same lock and
// pass it to RunSeq, so a later number always carries a later query. apply holds mu while comparing
// against applied and calling the presenter, so presenters see
// strictly increasing sequence numbers and never a stale row set.

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/otel"
)

// Presenter receives each applied row set, replacing the previous one.
type Presenter interface {
	Present(rows []Row)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(rows []Row)

// Present calls f.
func (f PresenterFunc) Present(rows []Row) { f(rows) }

// Query is the user-controlled part of a refresh.
type Query struct {
	Text string
	Sort config.SortKey
}

// Pipeline resolves, fetches, joins, filters and sorts plant rows.
type Pipeline struct {
	bridge    hass.Bridge
	card      config.Card
	presenter Presenter
	collation language.Tag
	events    *otel.Logger
	log       *log.Logger

	requested atomic.Uint64

	mu      sync.Mutex
	applied uint64
	last    []Row
}

// NewPipeline wires a pipeline. presenter, events and logger may be nil.
func NewPipeline(bridge hass.Bridge, card config.Card, presenter Presenter, collation language.Tag, events *otel.Logger, logger *log.Logger) *Pipeline {
	if presenter == nil {
		presenter = PresenterFunc(func([]Row) {})
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{
		bridge:    bridge,
		card:      card,
		presenter: presenter,
		collation: collation,
		events:    events,
		log:       logger,
	}
}

// Run executes one refresh and reports whether its rows were presented.
// A refresh that completes after a newer one has been applied is dropped.
func (p *Pipeline) Run(ctx context.Context, q Query) bool {
	return p.RunSeq(ctx, p.Next(), q)
}

// Next reserves the sequence number for a refresh started later with RunSeq.
func (p *Pipeline) Next() uint64 {
	return p.requested.Add(1)
}

// RunSeq is Run with a sequence number reserved by Next.
func (p *Pipeline) RunSeq(ctx context.Context, seq uint64, q Query) bool {
	start := time.Now()
	p.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindRefreshStart, Comp: "card", Seq: seq})

	candidates := p.candidates(p.bridge.States())
	metas := p.fetchAll(ctx, seq, candidates)

	// Sensors are resolved against the snapshot as it is after the
	// fetches, not the one the candidates came from.
	snapshot := p.bridge.States()
	rows := make([]Row, len(candidates))
	for i, st := range candidates {
		rows[i] = Join(st, metas[i], snapshot)
	}

	rows = Filter(rows, q.Text, p.card.EnableNickname)
	rows = Sort(rows, q.Sort, p.collation)

	return p.apply(seq, rows, time.Since(start))
}

// candidates lists the plants to show, in display order before sorting.
func (p *Pipeline) candidates(snapshot map[string]hass.EntityState) []hass.EntityState {
	if p.card.ShowAll {
		out := make([]hass.EntityState, 0)
		for id, st := range snapshot {
			if strings.HasPrefix(id, PlantPrefix) {
				out = append(out, st)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
		return out
	}

	out := make([]hass.EntityState, 0, len(p.card.Entities))
	for _, id := range p.card.Entities {
		st, ok := snapshot[id]
		if !ok {
			p.missing(id, snapshot)
			continue
		}
		out = append(out, st)
	}
	return out
}

func (p *Pipeline) missing(id string, snapshot map[string]hass.EntityState) {
	hint := suggestPlant(id, snapshot)
	if hint != "" {
		p.log.Warn("configured entity not found", "entity", id, "did_you_mean", hint)
	} else {
		p.log.Warn("configured entity not found", "entity", id)
	}
	p.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindEntityMissing, Comp: "card", Entity: id, Msg: hint})
}

// fetchAll looks up metadata for every candidate at once. A failed lookup
// leaves nil in its slot; the group itself never fails.
func (p *Pipeline) fetchAll(ctx context.Context, seq uint64, candidates []hass.EntityState) []*hass.Metadata {
	metas := make([]*hass.Metadata, len(candidates))
	var g errgroup.Group
	for i, st := range candidates {
		g.Go(func() error {
			m, err := p.bridge.FetchMetadata(ctx, st.EntityID)
			if err != nil {
				p.log.Debug("metadata lookup failed", "entity", st.EntityID, "err", err)
				p.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindMetadataError, Comp: "card",
					Seq: seq, Entity: st.EntityID, Err: err.Error()})
				return nil
			}
			metas[i] = m
			return nil
		})
	}
	_ = g.Wait()
	return metas
}

func (p *Pipeline) apply(seq uint64, rows []Row, dur time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.applied {
		p.log.Debug("dropping stale refresh", "seq", seq, "applied", p.applied)
		p.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindRefreshStale, Comp: "card", Seq: seq, Dur: dur})
		return false
	}
	p.applied = seq
	p.last = rows
	p.presenter.Present(rows)
	p.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRefreshApplied, Comp: "card", Seq: seq, Count: len(rows), Dur: dur})
	return true
}

// Rows returns the last applied row set.
func (p *Pipeline) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Row, len(p.last))
	copy(out, p.last)
	return out
}

// Applied is the sequence number of the last applied refresh.
func (p *Pipeline) Applied() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}
