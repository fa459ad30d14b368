package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/urfave/cli/v3"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or clear recent searches",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent searches, most recent first",
				Action: func(ctx context.Context, c *cli.Command) error {
					return listHistory(ctx, c.String("config"))
				},
			},
			{
				Name:  "clear",
				Usage: "Forget all recent searches",
				Action: func(ctx context.Context, c *cli.Command) error {
					return clearHistory(ctx, c.String("config"))
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listHistory(ctx, c.String("config"))
		},
	}
}

func listHistory(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return printHistory(ctx, cfg, os.Stdout)
}

func printHistory(ctx context.Context, cfg *config.Config, w io.Writer) error {
	h, tracker, closeFn, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	entries := h.List(ctx)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No recent searches.")
	}
	for i, e := range entries {
		fmt.Fprintf(w, "%d. %s\n", i+1, e)
	}
	if at, ok := tracker.LastUsed(ctx); ok {
		fmt.Fprintf(w, "\nLast result opened %s\n", at.Local().Format(time.DateTime))
	}
	return nil
}

func clearHistory(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	h, _, closeFn, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	h.Clear(ctx)
	fmt.Println("Search history cleared.")
	return nil
}
