// Package watch runs the background polling pass that turns player state
// changes into chat notifications.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"apexwatch/internal/apex"
	"apexwatch/internal/history"
	"apexwatch/internal/registry"
	kit "apexwatch/internal/transport"
	logx "apexwatch/pkg/logx"
	"apexwatch/pkg/tgui"
)

// Fetcher is satisfied by *apex.Client.
type Fetcher interface {
	Fetch(ctx context.Context, player, platform string) (apex.Status, error)
}

type Config struct {
	// PollInterval separates full passes over the tracked players.
	PollInterval time.Duration
	// IdleInterval is the retry delay while no notification chat is bound.
	IdleInterval time.Duration
	// RatePerSec caps outbound notification messages.
	RatePerSec float64
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = 5 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
}

// Watcher polls tracked players one at a time, in registry order, and sends
// a notification when a player's state code changes.
type Watcher struct {
	reg     *registry.Registry
	fetch   Fetcher
	adapter kit.Adapter
	hist    *history.Store
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, reg *registry.Registry, fetch Fetcher, adapter kit.Adapter, hist *history.Store, log logx.Logger) *Watcher {
	cfg.applyDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		reg:     reg,
		fetch:   fetch,
		adapter: adapter,
		hist:    hist,
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

// Reconfigure applies new intervals and send rate on config reload.
func (w *Watcher) Reconfigure(cfg Config) {
	cfg.applyDefaults()
	w.mu.Lock()
	w.cfg = cfg
	w.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
	w.mu.Unlock()
}

func (w *Watcher) config() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Run loops until ctx is cancelled. Intended to run under a supervisor
// restart loop; it only returns on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watcher started")
	defer w.log.Info("watcher stopped")
	for {
		cfg := w.config()

		chatID, bound := w.reg.ActiveChat()
		if !bound {
			if !sleep(ctx, cfg.IdleInterval) {
				return nil
			}
			continue
		}

		w.pass(ctx, chatID)

		if !sleep(ctx, cfg.PollInterval) {
			return nil
		}
	}
}

// pass fetches every notify-enabled player once, sequentially. A failed
// fetch skips that player for this pass without logging noise at INFO.
func (w *Watcher) pass(ctx context.Context, chatID int64) {
	for _, e := range w.reg.List() {
		if ctx.Err() != nil {
			return
		}
		if !e.Player.Notify {
			continue
		}

		st, err := w.fetch.Fetch(ctx, e.Player.OriginalName, e.Player.Platform)
		if err != nil {
			w.log.Debug("poll fetch failed",
				logx.String("player", e.Player.OriginalName),
				logx.Err(err))
			continue
		}
		last := e.Player.Last()
		if st.State == last {
			continue
		}

		w.log.Info("state change",
			logx.String("player", e.Player.OriginalName),
			logx.String("from", last),
			logx.String("to", st.State))

		if err := w.reg.RecordState(e.Key, st.State); err != nil {
			w.log.Warn("state record failed", logx.Err(err))
		}
		if err := w.hist.Append(ctx, history.Transition{
			PlayerKey: e.Key,
			Name:      e.Player.OriginalName,
			Platform:  e.Player.Platform,
			FromState: last,
			ToState:   st.State,
		}); err != nil {
			w.log.Warn("history append failed", logx.Err(err))
		}

		if err := w.notify(ctx, chatID, e.Player, st); err != nil {
			w.log.Warn("notification send failed",
				logx.String("player", e.Player.OriginalName),
				logx.Err(err))
		}
	}
}

func (w *Watcher) notify(ctx context.Context, chatID int64, p registry.Player, st apex.Status) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	text := fmt.Sprintf("%s 状态更新:\n🟢 %s (%s)\n已持续时间: %s",
		p.OriginalName, st.Text(), st.State, st.Duration(time.Now()))
	msg := tgui.New().Line(text).Build()
	_, err := msg.Send(ctx, w.adapter, kit.ChatTarget{ChatID: chatID})
	return err
}

// sleep waits d or until ctx is cancelled; reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
