package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/coord"
	"github.com/abelbrown/verdant/internal/logging"
	"github.com/abelbrown/verdant/internal/server"
)

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	addr := fs.String("addr", "", "Listen address (default: http.addr from config)")
	fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := setup(ctx, *configPath, true)
	defer rt.Close()

	if *addr == "" {
		*addr = rt.cfg.HTTP.Addr
	}

	// Rows are read on request; the coordinator presents to nobody.
	co := coord.New(rt.client, rt.cfg.ResyncInterval, rt.events)
	crd, err := card.New(rt.cfg.Card, rt.client, co,
		card.WithEvents(rt.events),
		card.WithLogger(logging.WithPrefix("card")),
		card.WithJournal(rt.store),
		card.WithConfirmer(server.Confirmer()),
	)
	if err != nil {
		fatal("invalid card: %v", err)
	}
	co.Start(ctx, crd, nil)

	go func() {
		select {
		case <-rt.client.Done():
			logging.Error("home assistant connection lost", "err", rt.client.Err())
			stop()
		case <-ctx.Done():
		}
	}()

	srv := server.New(crd, rt.store, rt.ring)
	if err := srv.Run(ctx, *addr); err != nil {
		logging.Error("server stopped", "err", err)
	}

	stop()
	co.Wait()
}
