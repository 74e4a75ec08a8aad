package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/abelbrown/verdant/internal/store"
)

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.yaml")
	limit := fs.Int("n", 20, "Number of actions to show")
	entity := fs.String("entity", "", "Only actions for this plant (e.g. plant.fern)")
	rawJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(os.Args[1:])

	cfg := loadConfig(*configPath, false)
	st := openStore(cfg)
	defer st.Close()

	ctx := context.Background()
	var (
		actions []store.Action
		err     error
	)
	if *entity != "" {
		actions, err = st.ActionsFor(ctx, *entity, *limit)
	} else {
		actions, err = st.RecentActions(ctx, *limit)
	}
	if err != nil {
		fatal("read history: %v", err)
	}

	if *rawJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(actions); err != nil {
			fatal("encode: %v", err)
		}
		return
	}

	if len(actions) == 0 {
		fmt.Println("No actions recorded yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSERVICE\tPLANT\tRESULT")
	for _, a := range actions {
		result := "ok"
		if !a.OK {
			result = "failed: " + a.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.At.Local().Format("2006-01-02 15:04:05"), a.Service, a.EntityID, result)
	}
	w.Flush()
}
