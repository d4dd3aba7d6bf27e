package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// LogOption is a functional option for [Log].
type LogOption func(*logOpts) error

type logOpts struct {
	interval time.Duration
	clock    clock.Clock
	msg      string
}

// WithInterval sets how often in-flight progress is logged. Defaults to one second.
func WithInterval(d time.Duration) LogOption {
	return func(opts *logOpts) error {
		if d <= 0 {
			return errors.New("interval must be greater than zero")
		}
		opts.interval = d
		return nil
	}
}

// WithClock replaces the wall clock, mostly useful in tests.
func WithClock(c clock.Clock) LogOption {
	return func(opts *logOpts) error {
		if c == nil {
			return errors.New("clock must not be nil")
		}
		opts.clock = c
		return nil
	}
}

// WithMessage sets the log message used for in-flight records.
func WithMessage(msg string) LogOption {
	return func(opts *logOpts) error {
		opts.msg = msg
		return nil
	}
}

// Log returns a Func logging progress at most once per interval,
// plus a final record once the transfer is done.
func Log(logger *slog.Logger, optFns ...LogOption) (Func, error) {
	opts := logOpts{
		interval: time.Second,
		clock:    clock.New(),
		msg:      "transferring",
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	pl := &progressLogger{
		logger:    logger,
		clock:     opts.clock,
		interval:  opts.interval,
		msg:       opts.msg,
		startTime: opts.clock.Now(),
	}

	return pl.report, nil
}

// progressLogger rate-limits progress records.
type progressLogger struct {
	mu        sync.Mutex
	logger    *slog.Logger
	clock     clock.Clock
	interval  time.Duration
	msg       string
	startTime time.Time
	lastLog   time.Time
}

func (pl *progressLogger) report(loaded, total int64, done bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if done {
		pl.log("transfer complete", loaded, total)
		return
	}

	if pl.clock.Since(pl.lastLog) >= pl.interval {
		pl.lastLog = pl.clock.Now()
		pl.log(pl.msg, loaded, total)
	}
}

func (pl *progressLogger) log(msg string, loaded, total int64) {
	elapsed := pl.clock.Since(pl.startTime)

	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", loaded,
		"total", total,
	}
	if total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(loaded)/float64(total)*100))
	}
	if secs := elapsed.Seconds(); secs > 0 {
		attrs = append(attrs, "mbps", fmt.Sprintf("%.2f", float64(loaded)/secs/(1024*1024)))
	}

	pl.logger.Info(msg, attrs...)
}
