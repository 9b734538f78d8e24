// Package app wires configuration, logging, transport, storage, and the two
// long-running loops together, and owns startup/shutdown ordering.
package app

import (
	"context"
	"fmt"
	"time"

	"apexwatch/internal/apex"
	"apexwatch/internal/bot"
	"apexwatch/internal/config"
	"apexwatch/internal/history"
	"apexwatch/internal/registry"
	rtsup "apexwatch/internal/runtime/supervisor"
	kit "apexwatch/internal/transport"
	"apexwatch/internal/transport/telegram"
	"apexwatch/internal/watch"
	logx "apexwatch/pkg/logx"
)

// updateBuffer sizes the adapter→router channel. Long enough to absorb a
// poll burst, small enough that drops surface quickly in logs.
const updateBuffer = 128

type App struct {
	cfgm   *config.Manager
	logsvc *logx.Service
	log    logx.Logger

	adapter   *telegram.Adapter
	reg       *registry.Registry
	hist      *history.Store
	retention *history.Retention
	fetcher   *apex.Client
	router    *bot.Router
	watcher   *watch.Watcher

	sup     *rtsup.Supervisor
	updates chan kit.Update

	// Settings fixed at construction time. A reload that changes one of
	// these only takes effect after a restart.
	bootToken   string
	bootState   string
	bootHistory string
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logsvc, log := logx.New(logConfig(cfg), nil)
	log = log.With(logx.String("svc", "apexwatch"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Duration("telegram.poll_timeout"),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logsvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}
	logsvc.SetSender(adapter)

	statePath := cfg.Storage.StatePath
	if statePath == "" {
		statePath = "./players.json"
	}
	store, err := registry.NewFileStore(statePath)
	if err != nil {
		_ = logsvc.Close()
		return nil, fmt.Errorf("state store: %w", err)
	}
	reg := registry.New(store, log.With(logx.String("comp", "registry")))
	if err := reg.Load(); err != nil {
		_ = logsvc.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}

	var hist *history.Store
	if cfg.Storage.HistoryPath != "" {
		hist, err = history.Open(cfg.Storage.HistoryPath, 5*time.Second, log.With(logx.String("comp", "history")))
		if err != nil {
			_ = logsvc.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
	}

	fetcher, err := apex.NewClient(apex.Config{
		APIKey:  cfg.Apex.APIKey,
		BaseURL: cfg.Apex.BaseURL,
		Timeout: cfg.Duration("apex.request_timeout"),
	}, log.With(logx.String("comp", "apex")))
	if err != nil {
		_ = hist.Close()
		_ = logsvc.Close()
		return nil, fmt.Errorf("apex client: %w", err)
	}

	router := bot.NewRouter(routerConfig(cfg), adapter, reg, fetcher, hist,
		log.With(logx.String("comp", "router")))
	watcher := watch.New(watchConfig(cfg), reg, fetcher, adapter, hist,
		log.With(logx.String("comp", "watch")))

	return &App{
		cfgm:        cfgm,
		logsvc:      logsvc,
		log:         log,
		adapter:     adapter,
		reg:         reg,
		hist:        hist,
		fetcher:     fetcher,
		router:      router,
		watcher:     watcher,
		updates:     make(chan kit.Update, updateBuffer),
		bootToken:   cfg.Telegram.Token,
		bootState:   statePath,
		bootHistory: cfg.Storage.HistoryPath,
	}, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func routerConfig(cfg *config.Config) bot.Config {
	return bot.Config{AllowedUsernames: cfg.Auth.AllowedUsernames}
}

func watchConfig(cfg *config.Config) watch.Config {
	return watch.Config{
		PollInterval: cfg.Duration("watch.poll_interval"),
		IdleInterval: cfg.Duration("watch.idle_interval"),
		RatePerSec:   float64(cfg.Watch.RatePerSec),
	}
}

// Start launches all long-running tasks under one supervisor.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(true),
	)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("start telegram: %w", err)
	}

	if cmds, order := bot.Commands(); len(order) > 0 {
		if err := a.adapter.SetCommands(cmds, order); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	}

	a.sup.GoRestart("dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.GoRestart("watch", func(c context.Context) error {
		return a.watcher.Run(c)
	})
	a.sup.Go0("config.watch", func(c context.Context) {
		if err := a.cfgm.Watch(c); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	})

	// Config reload fanout.
	reloads := a.cfgm.Subscribe(1)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(reloads)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-reloads:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	})

	// Mirror warning+ logs into the bound chat when enabled. The target
	// follows /start so a rebind redirects the sink too.
	if chat, ok := a.reg.ActiveChat(); ok {
		a.logsvc.SetTelegramTarget(chat)
	}
	a.router.OnChatBound(a.logsvc.SetTelegramTarget)

	cfg := a.cfgm.Get()
	if hist := a.hist; hist.Enabled() && cfg != nil {
		spec := cfg.Storage.HistoryPrune
		if spec == "" {
			spec = "@daily"
		}
		maxAge := cfg.Duration("storage.history_max_age")
		ret, err := history.StartRetention(hist, spec, maxAge, a.log.With(logx.String("comp", "history")))
		if err != nil {
			a.log.Warn("history retention not scheduled", logx.Err(err))
		} else {
			a.retention = ret
		}
	}

	a.log.Info("started", logx.Int("players", a.reg.Len()))
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.log.Info("config reloaded")
	if cfg.Telegram.Token != a.bootToken {
		a.log.Warn("telegram token changed, restart required to apply")
	}
	if cfg.Storage.StatePath != "" && cfg.Storage.StatePath != a.bootState {
		a.log.Warn("state path changed, restart required to apply")
	}
	if cfg.Storage.HistoryPath != a.bootHistory {
		a.log.Warn("history path changed, restart required to apply")
	}
	a.logsvc.Apply(logConfig(cfg))
	a.router.Reconfigure(routerConfig(cfg))
	a.watcher.Reconfigure(watchConfig(cfg))
}

// Done closes when any supervised task fails fatally.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop shuts components down in dependency order. Each step is bounded so a
// stuck component cannot stall the whole shutdown.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("step", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached", logx.String("step", name))
		}
	}

	step("telegram", 3*time.Second, a.adapter.Stop)
	step("retention", 2*time.Second, func(c context.Context) error { return a.retention.Stop(c) })
	step("tasks", 5*time.Second, a.sup.Wait)
	step("history", 2*time.Second, func(context.Context) error { return a.hist.Close() })
	step("logging", time.Second, func(context.Context) error { return a.logsvc.Close() })

	a.log.Info("stopped")
	return nil
}
