package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/hass"
	"github.com/abelbrown/verdant/internal/logging"
	"github.com/abelbrown/verdant/internal/otel"
	"github.com/abelbrown/verdant/internal/store"
)

// dialTimeout bounds connecting, authenticating and the first get_states.
const dialTimeout = 30 * time.Second

// runtime is everything a dashboard command shares.
type runtime struct {
	cfg       config.Config
	events    *otel.Logger
	eventFile *os.File
	ring      *otel.RingBuffer
	store     *store.Store
	client    *hass.Client
}

// loadConfig reads settings. With needCard false a missing card is not an
// error, so journal-only commands run on a bare config.
func loadConfig(path string, needCard bool) config.Config {
	cfg, err := config.Load(path)
	if err != nil && (needCard || !errors.Is(err, config.ErrNoSelection)) {
		fatal("load config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fatal("create data directory: %v", err)
	}
	return cfg
}

// dbPath returns the action journal path.
func dbPath(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "verdant.db")
}

// eventLogPath returns the path to verdant.events.jsonl.
func eventLogPath(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "verdant.events.jsonl")
}

// openStore opens the journal or fatals.
func openStore(cfg config.Config) *store.Store {
	st, err := store.Open(dbPath(cfg))
	if err != nil {
		fatal("open database: %v", err)
	}
	return st
}

// setup loads config, starts logging, opens the journal and connects to
// Home Assistant with a populated state cache. logToStderr sends the
// human log to stderr instead of the dated log file.
func setup(ctx context.Context, configPath string, logToStderr bool) *runtime {
	cfg := loadConfig(configPath, true)

	if logToStderr {
		logging.InitWriter(os.Stderr, cfg.LogLevel)
	} else if err := logging.Init(cfg.DataDir, cfg.LogLevel); err != nil {
		// The dashboard still works without a log file.
		logging.InitWriter(os.Stderr, "error")
		logging.Warn("failed to initialize logging", "err", err)
	}

	rt := &runtime{cfg: cfg, ring: otel.NewRingBuffer(otel.DefaultRingSize)}

	f, err := os.OpenFile(eventLogPath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		rt.events = otel.NewNullLogger()
	} else {
		rt.eventFile = f
		rt.events = otel.NewLogger(f)
	}
	rt.events.SetRingBuffer(rt.ring)
	rt.events.Info(otel.KindStartup, "main", "verdant starting")

	rt.store = openStore(cfg)
	rt.store.SetSession(rt.events.SessionID())
	logging.Info("store initialized", "path", dbPath(cfg))

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	start := time.Now()
	client, err := hass.Dial(dctx, cfg.Hass.URL, cfg.Hass.Token, hass.Options{
		RequestsPerSecond: cfg.Hass.RequestsPerSecond,
	})
	if err != nil {
		rt.events.Error(otel.KindHassError, "main", err)
		rt.Close()
		fatal("connect to home assistant: %v", err)
	}
	rt.client = client

	states, err := client.Resync(dctx)
	if err != nil {
		rt.events.Error(otel.KindHassError, "main", err)
		rt.Close()
		fatal("load states: %v", err)
	}
	rt.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindHassConnect, Comp: "main",
		Count: len(states), Dur: time.Since(start)})
	logging.Info("connected to home assistant", "url", cfg.Hass.URL, "entities", len(states))

	return rt
}

// Close releases everything setup opened, in reverse order.
func (rt *runtime) Close() {
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.events != nil {
		rt.events.Info(otel.KindShutdown, "main", "verdant exiting")
		rt.events.Close()
	}
	if rt.eventFile != nil {
		rt.eventFile.Close()
	}
	logging.Close()
}
