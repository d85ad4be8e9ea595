// Package refresh re-runs a render function while its caller is interested.
//
// When the storage pushes change notifications the function runs after each
// burst of changes; otherwise it runs on a fixed interval. Either way the loop
// lives exactly as long as the context it is given.
package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/host"
)

// Defaults for Config fields left at zero.
const (
	DefaultInterval = 10 * time.Second
	DefaultDebounce = 250 * time.Millisecond
)

// Config controls how often the function runs.
type Config struct {
	Interval time.Duration // Polling interval when the storage cannot push changes
	Debounce time.Duration // Quiet period after a change before running
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	return c
}

// Func is re-run on every refresh.
type Func func(ctx context.Context)

// Run blocks until ctx is done, invoking fn whenever the data may have
// changed. It returns ctx.Err().
func Run(ctx context.Context, storage host.Storage, cfg Config, logger *zap.Logger, fn Func) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	if w, ok := storage.(host.Watcher); ok {
		changes, err := w.Watch(ctx)
		if err == nil {
			logger.Debug("Refreshing on storage changes", zap.Duration("debounce", cfg.Debounce))
			return watch(ctx, changes, cfg.Debounce, fn)
		}
		logger.Warn("Storage watch unavailable, falling back to polling", zap.Error(err))
	}

	logger.Debug("Refreshing on interval", zap.Duration("interval", cfg.Interval))
	return poll(ctx, cfg.Interval, fn)
}

func poll(ctx context.Context, interval time.Duration, fn Func) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func watch(ctx context.Context, changes <-chan host.Change, debounce time.Duration, fn Func) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time // nil while no change is pending
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				// The watcher only closes the channel when ctx is done.
				<-ctx.Done()
				return ctx.Err()
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fn(ctx)
		}
	}
}
