// Command verdant is a live plant dashboard over Home Assistant.
//
// Usage:
//
//	verdant                 Terminal dashboard
//	verdant serve           Headless JSON API
//	verdant history         Recent mark-done / snooze calls
//	verdant events          JSONL event log viewer
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/coord"
	"github.com/abelbrown/verdant/internal/logging"
	"github.com/abelbrown/verdant/internal/otel"
	"github.com/abelbrown/verdant/internal/ui"
)

const usage = `verdant - plant dashboard for Home Assistant

Usage:
  verdant [-config path]             Terminal dashboard
  verdant <command> [flags]

Commands:
  serve       Headless JSON API (GET /api/plants, POST /api/plants/:id/done ...)
  history     Recent service calls from the action journal
  events      JSONL event log viewer

Configuration:
  ~/.verdant/config.yaml, or -config. Every key can be overridden with
  VERDANT_<KEY>, e.g. VERDANT_HASS_TOKEN or VERDANT_HASS_URL.

Run 'verdant <command> -h' for command-specific help.
`

func main() {
	cmd := ""
	if len(os.Args) > 1 && len(os.Args[1]) > 0 && os.Args[1][0] != '-' {
		cmd = os.Args[1]
		// Strip the program name + subcommand so flag sets see only their flags
		os.Args = os.Args[1:]
	}

	switch cmd {
	case "":
		runTUI()
	case "serve":
		runServe()
	case "history":
		runHistory()
	case "events":
		runEvents()
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "verdant: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runTUI() {
	fs := flag.NewFlagSet("verdant", flag.ExitOnError)
	fs.Usage = func() { fmt.Print(usage) }
	configPath := fs.String("config", "", "Path to config.yaml")
	fs.Parse(os.Args[1:])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := setup(ctx, *configPath, false)
	defer rt.Close()

	co := coord.New(rt.client, rt.cfg.ResyncInterval, rt.events)

	// The confirmer needs the program, which needs the app, which needs
	// the card; program is assigned before anything can prompt.
	var program *tea.Program
	confirmer := ui.NewConfirmer(func(msg tea.Msg) { program.Send(msg) })

	crd, err := card.New(rt.cfg.Card, rt.client, co,
		card.WithEvents(rt.events),
		card.WithLogger(logging.WithPrefix("card")),
		card.WithJournal(rt.store),
		card.WithConfirmer(confirmer),
	)
	if err != nil {
		fatal("invalid card: %v", err)
	}

	app := ui.NewApp("verdant", crd.Labels(), crd.Query().Sort, ui.CardActions(ctx, crd), rt.ring)
	program = tea.NewProgram(app, tea.WithAltScreen())

	co.Start(ctx, crd, program)
	go func() {
		select {
		case <-rt.client.Done():
			logging.Error("home assistant connection lost", "err", rt.client.Err())
			rt.events.Error(otel.KindHassError, "main", rt.client.Err())
			program.Send(ui.Resynced{Err: fmt.Errorf("connection lost: %w", rt.client.Err())})
		case <-ctx.Done():
		}
	}()

	// Run UI (blocks until quit)
	if _, err := program.Run(); err != nil {
		logging.Error("application error", "err", err)
	}

	// Graceful shutdown
	cancel()
	co.Wait()
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logging.Error(msg)
	fmt.Fprintln(os.Stderr, "verdant: "+msg)
	os.Exit(1)
}
