// Package server exposes the plant card over HTTP for headless use.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/logging"
	"github.com/abelbrown/verdant/internal/otel"
	"github.com/abelbrown/verdant/internal/store"
)

const (
	plantsEndpoint  = "/api/plants"
	queryEndpoint   = "/api/query"
	actionsEndpoint = "/api/actions"
	eventsEndpoint  = "/debug/events"
	healthEndpoint  = "/healthz"

	defaultActionLimit = 50
	defaultEventLimit  = 100
	shutdownTimeout    = 5 * time.Second
)

// History is the read side of the action journal. *store.Store implements it.
type History interface {
	RecentActions(ctx context.Context, limit int) ([]store.Action, error)
	ActionsFor(ctx context.Context, entityID string, limit int) ([]store.Action, error)
}

type confirmKey struct{}

// Confirmer answers mark-done prompts from the request that triggered
// them: yes only when the handler saw confirm=yes.
func Confirmer() card.Confirmer {
	return card.ConfirmFunc(func(ctx context.Context, _ string) bool {
		ok, _ := ctx.Value(confirmKey{}).(bool)
		return ok
	})
}

// Server serves one card.
type Server struct {
	card    *card.Card
	history History
	ring    *otel.RingBuffer
	log     *log.Logger
	router  *gin.Engine
}

// New builds the router. history and ring may be nil; their endpoints
// then answer 404.
func New(c *card.Card, history History, ring *otel.RingBuffer) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		card:    c,
		history: history,
		ring:    ring,
		log:     logging.WithPrefix("http"),
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), s.logRequests)

	s.router.GET(healthEndpoint, s.healthHandler)
	s.router.GET(plantsEndpoint, s.plantsHandler)
	s.router.POST(plantsEndpoint+"/:id/done", s.doneHandler)
	s.router.POST(plantsEndpoint+"/:id/snooze", s.snoozeHandler)
	s.router.POST(queryEndpoint, s.queryHandler)
	s.router.GET(actionsEndpoint, s.actionsHandler)
	s.router.GET(eventsEndpoint, s.eventsHandler)
	return s
}

// Handler is the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"dur", time.Since(start))
}

// plantJSON is one row as served.
type plantJSON struct {
	EntityID       string   `json:"entity_id"`
	Name           string   `json:"name"`
	Nickname       string   `json:"nickname,omitempty"`
	Image          string   `json:"image,omitempty"`
	State          string   `json:"state"`
	WateringSensor *string  `json:"watering_sensor"`
	WateringState  *string  `json:"watering_state"`
	Watering       *float64 `json:"watering"`
	WateringLabel  string   `json:"watering_label"`
}

type plantsJSON struct {
	Query  string      `json:"query"`
	Sort   string      `json:"sort"`
	Size   int         `json:"size"`
	Plants []plantJSON `json:"plants"`
}

func (s *Server) plants() plantsJSON {
	labels := s.card.Labels()
	q := s.card.Query()
	rows := s.card.Rows()

	out := plantsJSON{
		Query:  q.Text,
		Sort:   string(q.Sort),
		Size:   s.card.Size(),
		Plants: make([]plantJSON, 0, len(rows)),
	}
	for _, r := range rows {
		p := plantJSON{
			EntityID:       r.EntityID(),
			Name:           r.Name(),
			Image:          r.ImageURL(),
			State:          r.State.State,
			WateringSensor: r.WateringSensor,
			WateringState:  r.WateringState,
			Watering:       r.Watering,
			WateringLabel:  labels.Watering(r),
		}
		if s.card.Config().EnableNickname {
			p.Nickname = r.Nickname()
		}
		out.Plants = append(out.Plants, p)
	}
	return out
}

func (s *Server) healthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"subscribed": s.card.Subscribed(),
		"plants":     len(s.card.Rows()),
	})
}

func (s *Server) plantsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.plants())
}

type queryRequest struct {
	Text *string `json:"text"`
	Sort *string `json:"sort"`
}

// queryHandler changes the search text and/or sort key, then answers with
// the refreshed rows.
func (s *Server) queryHandler(ctx *gin.Context) {
	var req queryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rctx := ctx.Request.Context()
	if req.Sort != nil {
		if err := s.card.SetSort(rctx, config.SortKey(*req.Sort)); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Text != nil {
		s.card.SetQuery(rctx, *req.Text)
	}
	ctx.JSON(http.StatusOK, s.plants())
}

// lookup finds a listed plant by id. Plants hidden by the current query
// are not actionable, same as in the terminal UI.
func (s *Server) lookup(ctx *gin.Context) (card.Row, bool) {
	id := ctx.Param("id")
	for _, r := range s.card.Rows() {
		if r.EntityID() == id {
			return r, true
		}
	}
	ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("plant %q is not listed", id)})
	return card.Row{}, false
}

func (s *Server) doneHandler(ctx *gin.Context) {
	row, ok := s.lookup(ctx)
	if !ok {
		return
	}
	confirmed := ctx.Query("confirm") == "yes"
	rctx := context.WithValue(ctx.Request.Context(), confirmKey{}, confirmed)

	err := s.card.Triggers(row).MarkDone(rctx)
	switch {
	case errors.Is(err, card.ErrDeclined):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":  "confirmation required",
			"prompt": s.card.Dispatcher().Prompt(row.Name()),
		})
	case err != nil:
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusOK, gin.H{"entity_id": row.EntityID(), "service": card.ServiceDomain + "." + card.ServiceMarkWatered})
	}
}

func (s *Server) snoozeHandler(ctx *gin.Context) {
	row, ok := s.lookup(ctx)
	if !ok {
		return
	}
	if err := s.card.Triggers(row).Snooze(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"entity_id": row.EntityID(), "service": card.ServiceDomain + "." + card.ServiceSnooze})
}

func (s *Server) actionsHandler(ctx *gin.Context) {
	if s.history == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no action journal"})
		return
	}
	limit := queryInt(ctx, "limit", defaultActionLimit)

	var (
		actions []store.Action
		err     error
	)
	if id := ctx.Query("entity_id"); id != "" {
		actions, err = s.history.ActionsFor(ctx.Request.Context(), id, limit)
	} else {
		actions, err = s.history.RecentActions(ctx.Request.Context(), limit)
	}
	if err != nil {
		ctx.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if actions == nil {
		actions = []store.Action{}
	}
	ctx.JSON(http.StatusOK, actions)
}

func (s *Server) eventsHandler(ctx *gin.Context) {
	if s.ring == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "event buffer disabled"})
		return
	}
	events := s.ring.Last(queryInt(ctx, "n", defaultEventLimit))
	if kind := ctx.Query("kind"); kind != "" {
		filtered := events[:0]
		for _, e := range events {
			if string(e.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []otel.Event{}
	}
	ctx.JSON(http.StatusOK, events)
}

func queryInt(ctx *gin.Context, name string, def int) int {
	n, err := strconv.Atoi(ctx.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
