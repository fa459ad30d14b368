package proxy

import (
	"time"

	"github.com/rubiojr/fmsearch/pkg/config"
)

// settings is an immutable snapshot of the proxy configuration. Reloads
// swap the whole snapshot.
type settings struct {
	origins         map[string]bool
	webhookURL      string
	authHeaderName  string
	authHeaderValue string
	timeout         time.Duration
	missing         []string
}

func newSettings(cfg config.ProxyConfig) *settings {
	s := &settings{
		origins:         make(map[string]bool, len(cfg.AllowedOrigins)),
		webhookURL:      cfg.WebhookURL,
		authHeaderName:  cfg.AuthHeaderName,
		authHeaderValue: cfg.AuthHeaderValue,
		timeout:         cfg.UpstreamTimeout.Duration,
		missing:         cfg.MissingUpstream(),
	}
	for _, o := range cfg.AllowedOrigins {
		if o != "" {
			s.origins[o] = true
		}
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	return s
}
