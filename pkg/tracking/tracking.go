// Package tracking records that a visitor interacted with a search result.
// The marker is persisted in client storage and mirrored to a cookie so
// external analytics can read it.
package tracking

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rubiojr/fmsearch/pkg/log"
	"github.com/rubiojr/fmsearch/pkg/storage"
)

const (
	UsedKey      = "fm_search_used"
	TimestampKey = "fm_search_timestamp"
	CookieName   = "fm_search_used"
	CookieMaxAge = 30 * 24 * time.Hour
)

var logger = log.ForService("tracking")

// Tracker writes the search-used marker. A nil jar or nil origin skips the
// cookie mirror.
type Tracker struct {
	kv     storage.Store
	jar    http.CookieJar
	origin *url.URL
	now    func() time.Time
}

func New(kv storage.Store, jar http.CookieJar, origin *url.URL) *Tracker {
	return &Tracker{kv: kv, jar: jar, origin: origin, now: time.Now}
}

// MarkSearchUsed stores the flag and a millisecond timestamp, then sets the
// cookie. Failures are logged and otherwise ignored.
func (t *Tracker) MarkSearchUsed(ctx context.Context) {
	at := t.now()

	if err := t.kv.Set(ctx, UsedKey, "1"); err != nil {
		logger.Warnf("persisting %s: %v", UsedKey, err)
	}
	if err := t.kv.Set(ctx, TimestampKey, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		logger.Warnf("persisting %s: %v", TimestampKey, err)
	}

	if t.jar == nil || t.origin == nil {
		return
	}
	t.jar.SetCookies(t.origin, []*http.Cookie{{
		Name:     CookieName,
		Value:    "1",
		Path:     "/",
		Expires:  at.Add(CookieMaxAge),
		SameSite: http.SameSiteLaxMode,
	}})
	logger.Debugf("search-used cookie set for %s", t.origin.Host)
}

// LastUsed returns the stored timestamp of the last marked interaction.
func (t *Tracker) LastUsed(ctx context.Context) (time.Time, bool) {
	v, err := t.kv.Get(ctx, TimestampKey)
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
