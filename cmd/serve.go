package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/proxy"
	"github.com/rubiojr/fmsearch/pkg/realtime"
	"github.com/urfave/cli/v3"
)

var serveLog = log.ForService("serve")

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the search proxy in front of the upstream webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides proxy.listen)",
			},
			&cli.IntFlag{
				Name:  "event-buffer",
				Usage: "Per-listener buffer of the live search feed",
				Value: 64,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"), int(c.Int("event-buffer")))
		},
	}
}

func serve(ctx context.Context, configPath, listen string, eventBuffer int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listen == "" {
		listen = cfg.Proxy.Listen
	}

	hub := realtime.NewHub(eventBuffer)
	p := proxy.New(cfg.Proxy, proxy.WithHub(hub))
	if missing := p.Missing(); len(missing) > 0 {
		serveLog.Warnf("upstream not configured, searches will fail until these are set: %s", strings.Join(missing, ", "))
	}
	if len(cfg.Proxy.AllowedOrigins) == 0 {
		serveLog.Warnf("no allowed origins configured, browsers will reject every response")
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serveLog.Infof("listening on %s", listen)
		serveLog.Infof("  POST %s", proxy.NetlifyPath)
		serveLog.Infof("  POST %s", proxy.SearchPath)
		serveLog.Infof("  GET  %s", proxy.HealthPath)
		serveLog.Infof("  GET  %s (websocket)", proxy.EventsPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		serveLog.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(configPath); err != nil {
			serveLog.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			serveLog.Infof("watching config file for changes: %s", configPath)
		}
		events, watchErrs = watcher.Events, watcher.Errors
	}

	reload := func(reason string) {
		newCfg, err := config.LoadConfig(configPath)
		if err != nil {
			serveLog.Errorf("%s: failed to reload configuration: %v", reason, err)
			return
		}
		if newCfg.Proxy.Listen != cfg.Proxy.Listen {
			serveLog.Warnf("listen address changed to %s, restart to apply", newCfg.Proxy.Listen)
		}
		p.Reload(newCfg.Proxy)
		cfg = newCfg
	}

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			return shutdown(server)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				serveLog.Infof("received SIGHUP, reloading configuration")
				reload("SIGHUP")
				continue
			}
			return shutdown(server)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			serveLog.Infof("config file changed (%s), reloading", event.Op)
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				// editors replace the file on save
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					serveLog.Warnf("config file removed, keeping current configuration")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					serveLog.Warnf("failed to re-watch config file: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload("file change")
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			serveLog.Warnf("config file watcher error: %v", err)
		}
	}
}

func shutdown(server *http.Server) error {
	serveLog.Infof("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
