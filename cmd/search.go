package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/render"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a single product search and print the results",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Search endpoint (overrides widget.webhook_url)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Show every cached result instead of the first page",
			},
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Render the results panel as HTML",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the visible products as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			q := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(q) == "" {
				return errors.New("a search query is required")
			}
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return searchOnce(ctx, cfg, q, searchOptions{
				endpoint: c.String("endpoint"),
				all:      c.Bool("all"),
				html:     c.Bool("html"),
				json:     c.Bool("json"),
			}, os.Stdout)
		},
	}
}

type searchOptions struct {
	endpoint string
	all      bool
	html     bool
	json     bool
}

func searchOnce(ctx context.Context, cfg *config.Config, q string, opts searchOptions, out io.Writer) error {
	s, err := openSession(cfg, opts.endpoint, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Widget.RequestTimeout.Duration+5*time.Second)
	defer cancel()

	s.ctrl.FireSearch(q)
	ev, err := s.rec.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for results: %w", err)
	}

	if ev.State == controller.StateResults && opts.all {
		for s.ctrl.LoadMore() {
		}
		ev, _ = s.rec.Last()
	}

	switch {
	case ev.State == controller.StateHidden:
		return fmt.Errorf("query must be at least %d characters", cfg.Widget.MinChars)
	case opts.json && ev.State == controller.StateResults:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ev.Page.Items)
	case opts.html && ev.State == controller.StateResults:
		return render.WriteHTML(out, ev.Page)
	}

	replay(render.NewTerminalView(out, cfg.Widget.Theme), ev)

	switch ev.State {
	case controller.StateError:
		return fmt.Errorf("search failed: %s", ev.ErrorKind)
	case controller.StateRateLimited:
		return errors.New("rate limited")
	}
	return nil
}

// replay sends a recorded event to another View.
func replay(v controller.View, e render.Event) {
	switch e.State {
	case controller.StateHidden:
		v.Hide()
	case controller.StateLoading:
		v.ShowLoading(e.Query)
	case controller.StateResults:
		v.ShowResults(e.Page)
	case controller.StateNoResults:
		v.ShowNoResults(e.Query)
	case controller.StateRateLimited:
		v.ShowRateLimit(e.RateLimit)
	case controller.StateError:
		v.ShowError(e.ErrorKind, e.Message)
	case controller.StateHistory:
		v.ShowHistory(e.History)
	}
}
