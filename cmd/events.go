package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/proxy"
	"github.com/urfave/cli/v3"
)

// EventsCommand creates a CLI command that tails the proxy's live search
// feed and writes NDJSON events to stdout.
//
// Typical usage:
//
//	fmsearch events
//	fmsearch events --url ws://search.example/api/events
//	fmsearch events | jq -r 'select(.type=="search") | .search.query'
//
// By default only "search" events are printed. --all includes the init and
// heartbeat frames. The command reconnects with exponential backoff unless
// --no-retry is set.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Stream live search events (NDJSON) from a running proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Websocket URL (defaults to the configured proxy listen address)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print all frames (init, heartbeat) instead of only searches",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON instead of raw single-line",
			},
			&cli.BoolFlag{
				Name:  "no-retry",
				Usage: "Do not retry on failures; exit on first connection error",
			},
			&cli.DurationFlag{
				Name:  "initial-backoff",
				Usage: "Initial reconnect backoff",
				Value: 1 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "max-backoff",
				Usage: "Maximum reconnect backoff",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			url := c.String("url")
			if url == "" {
				cfg, err := config.LoadConfig(c.String("config"))
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				url = eventsURL(cfg.Proxy.Listen)
			}
			return tailEvents(ctx, tailOptions{
				url:            url,
				includeAll:     c.Bool("all"),
				pretty:         c.Bool("pretty"),
				noRetry:        c.Bool("no-retry"),
				initialBackoff: c.Duration("initial-backoff"),
				maxBackoff:     c.Duration("max-backoff"),
				stdout:         os.Stdout,
				stderr:         os.Stderr,
			})
		},
	}
}

// eventsURL turns a listen address into the local websocket URL.
func eventsURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "ws://" + listen + proxy.EventsPath
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port) + proxy.EventsPath
}

type tailOptions struct {
	url            string
	includeAll     bool
	pretty         bool
	noRetry        bool
	initialBackoff time.Duration
	maxBackoff     time.Duration
	stdout         io.Writer
	stderr         io.Writer
}

func tailEvents(ctx context.Context, opts tailOptions) error {
	if opts.initialBackoff <= 0 {
		opts.initialBackoff = time.Second
	}
	if opts.maxBackoff < opts.initialBackoff {
		opts.maxBackoff = 30 * time.Second
	}

	fmt.Fprintf(opts.stderr, "Events: connecting to %s\n", opts.url)
	backoff := opts.initialBackoff

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if opts.noRetry {
				return fmt.Errorf("dial: %w", err)
			}
			fmt.Fprintf(opts.stderr, "Events: dial failed (%v), retrying in %s\n", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, opts.maxBackoff)
			continue
		}

		fmt.Fprintf(opts.stderr, "Events: connected\n")
		backoff = opts.initialBackoff

		err = streamFrames(ctx, conn, opts)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if opts.noRetry {
			return err
		}
		fmt.Fprintf(opts.stderr, "Events: disconnected (%v), reconnecting...\n", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func streamFrames(ctx context.Context, conn *websocket.Conn, opts tailOptions) error {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := printFrame(opts.stdout, data, opts.includeAll, opts.pretty); err != nil {
			return err
		}
	}
}

func printFrame(w io.Writer, data []byte, includeAll, pretty bool) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		if includeAll {
			_, err := fmt.Fprintln(w, string(data))
			return err
		}
		return nil
	}
	if !includeAll && frame.Type != "search" {
		return nil
	}

	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err == nil {
			data = buf.Bytes()
		}
	}
	_, err := fmt.Fprintln(w, string(data))
	return err
}
