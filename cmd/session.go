package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/fmsearch/pkg/client"
	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/controller"
	"github.com/rubiojr/fmsearch/pkg/history"
	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/render"
	"github.com/rubiojr/fmsearch/pkg/storage"
	"github.com/rubiojr/fmsearch/pkg/tracking"
	"github.com/urfave/cli/v3"
)

// SetupLogging turns on debug output for every service when --debug is set.
func SetupLogging(ctx context.Context, c *cli.Command) (context.Context, error) {
	log.SetGlobalDebug(c.Bool("debug"))
	return ctx, nil
}

// session wires one widget instance: persistent storage, the webhook
// client and a controller whose View is wrapped in a Recorder.
type session struct {
	cfg     *config.Config
	store   *storage.SQLiteStore
	history *history.Store
	tracker *tracking.Tracker
	client  *client.Client
	rec     *render.Recorder
	ctrl    *controller.Controller
}

func openSession(cfg *config.Config, endpoint string, view controller.View) (*session, error) {
	if endpoint == "" {
		endpoint = cfg.Widget.WebhookURL
	}
	cl, err := client.New(endpoint)
	if err != nil {
		return nil, err
	}

	store, err := storage.OpenSQLite(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	s := &session{
		cfg:     cfg,
		store:   store,
		history: history.New(store, cfg.Widget.MaxHistory, cfg.Widget.MinChars),
		tracker: tracking.New(store, cl.Jar(), cl.Endpoint()),
		client:  cl,
		rec:     render.NewRecorder(view),
	}

	opts := controller.OptionsFromConfig(cfg.Widget)
	opts.Tracker = s.tracker
	s.ctrl = controller.New(opts, cl, s.rec, s.history)
	return s, nil
}

func (s *session) Close() {
	s.ctrl.Close()
	if err := s.store.Close(); err != nil {
		log.ForService("cmd").Warnf("closing storage: %v", err)
	}
}

// openHistory opens the history store and the usage tracker, for commands
// that never search.
func openHistory(cfg *config.Config) (*history.Store, *tracking.Tracker, func(), error) {
	store, err := storage.OpenSQLite(cfg.DBPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	h := history.New(store, cfg.Widget.MaxHistory, cfg.Widget.MinChars)
	return h, tracking.New(store, nil, nil), func() { store.Close() }, nil
}
