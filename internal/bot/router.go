// Package bot routes inbound Telegram updates to the text-command and
// menu-callback handlers. Both surfaces operate on the same registry, so a
// player added by typing /add shows up in the button menu and vice versa.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"apexwatch/internal/apex"
	"apexwatch/internal/history"
	"apexwatch/internal/registry"
	kit "apexwatch/internal/transport"
	logx "apexwatch/pkg/logx"
)

// StatusFetcher is satisfied by *apex.Client.
type StatusFetcher interface {
	Fetch(ctx context.Context, player, platform string) (apex.Status, error)
}

// Request carries one inbound update through the middleware chain.
type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	Username string

	// Command is the matched command word or callback action (for logging).
	Command string
	Args    []string

	// Callback-only fields.
	CallbackID string
	MessageID  int
	Payload    string
}

// Config holds the router's tunables. Updated atomically on config reload.
type Config struct {
	AllowedUsernames []string
	HandlerTimeout   time.Duration
}

// Router consumes the update channel and dispatches to handlers.
// Updates are handled strictly in arrival order; handlers are expected to be
// idempotent because the transport redelivers on crash.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	reg     *registry.Registry
	fetch   StatusFetcher
	hist    *history.Store

	mu      sync.RWMutex
	allowed map[string]struct{}
	timeout time.Duration
	onBind  func(chatID int64)

	handleMsg HandlerFunc
	handleCB  HandlerFunc
}

func NewRouter(cfg Config, adapter kit.Adapter, reg *registry.Registry, fetch StatusFetcher, hist *history.Store, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		log:     log,
		adapter: adapter,
		reg:     reg,
		fetch:   fetch,
		hist:    hist,
		allowed: map[string]struct{}{},
	}
	r.Reconfigure(cfg)

	// Timeout is re-read per request so config reloads take effect immediately.
	dynTimeout := func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			return MWTimeout(r.handlerTimeout())(next)(ctx, req)
		}
	}
	mw := []Middleware{
		MWPanicRecover(log),
		MWRequestLog(log),
		dynTimeout,
	}
	r.handleMsg = Chain(r.dispatchMessage, mw...)
	r.handleCB = Chain(r.dispatchCallback, mw...)
	return r
}

// OnChatBound registers a hook invoked whenever /start binds a chat.
func (r *Router) OnChatBound(fn func(chatID int64)) {
	r.mu.Lock()
	r.onBind = fn
	r.mu.Unlock()
}

func (r *Router) chatBound(chatID int64) {
	r.mu.RLock()
	fn := r.onBind
	r.mu.RUnlock()
	if fn != nil {
		fn(chatID)
	}
}

// Reconfigure applies a new allow-list and handler timeout.
func (r *Router) Reconfigure(cfg Config) {
	set := make(map[string]struct{}, len(cfg.AllowedUsernames))
	for _, u := range cfg.AllowedUsernames {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			set[u] = struct{}{}
		}
	}
	r.mu.Lock()
	r.allowed = set
	if cfg.HandlerTimeout > 0 {
		r.timeout = cfg.HandlerTimeout
	} else if r.timeout == 0 {
		r.timeout = 30 * time.Second
	}
	r.mu.Unlock()
}

func (r *Router) handlerTimeout() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timeout
}

func (r *Router) authorized(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.allowed[strings.ToLower(strings.TrimSpace(username))]
	return ok
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	r.log.Info("dispatcher started")
	defer r.log.Info("dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		m := up.Message
		req := &Request{
			Update:   up,
			Chat:     kit.ChatTarget{ChatID: m.ChatID},
			FromID:   m.FromID,
			Username: m.FromUsername,
			Command:  firstWord(m.Text),
		}
		_ = r.handleMsg(ctx, req)
	case kit.UpdateCallback:
		if up.Callback == nil {
			return
		}
		cb := up.Callback
		req := &Request{
			Update:     up,
			Chat:       kit.ChatTarget{ChatID: cb.ChatID},
			FromID:     cb.FromID,
			Username:   cb.FromUsername,
			CallbackID: cb.ID,
			MessageID:  cb.MessageID,
		}
		_ = r.handleCB(ctx, req)
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// reply sends escaped plain text to the request's chat.
func (r *Router) reply(ctx context.Context, req *Request, text string) error {
	_, err := renderPlain(text).Send(ctx, r.adapter, req.Chat)
	return err
}
