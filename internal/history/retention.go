package history

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "apexwatch/pkg/logx"
)

// Retention runs scheduled pruning of old transitions.
type Retention struct {
	c   *cron.Cron
	log logx.Logger
}

// StartRetention schedules Prune(maxAge) on the given cron spec
// (standard 5-field specs plus descriptors like "@daily").
// Returns nil without scheduling when the store is disabled or maxAge <= 0.
func StartRetention(store *Store, spec string, maxAge time.Duration, log logx.Logger) (*Retention, error) {
	if !store.Enabled() || maxAge <= 0 {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := store.Prune(ctx, maxAge); err != nil {
			log.Warn("history prune failed", logx.Err(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Info("history retention scheduled",
		logx.String("spec", spec),
		logx.Duration("max_age", maxAge))
	return &Retention{c: c, log: log}, nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (r *Retention) Stop(ctx context.Context) error {
	if r == nil || r.c == nil {
		return nil
	}
	done := r.c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
