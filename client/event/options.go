package event

import (
	"errors"
	"log/slog"
)

// Option is a functional option for configuring a [Handle] via [New].
type Option func(*options) error

type options struct {
	executor Executor
	logger   *slog.Logger
	onError  func(error)
}

// WithExecutor runs loops on e instead of a fresh goroutine each.
func WithExecutor(e Executor) Option {
	return func(opts *options) error {
		if e == nil {
			return errors.New("executor must not be nil")
		}
		opts.executor = e
		return nil
	}
}

// WithErrorHandler is called with the [LoopError] that ends a loop,
// before the handle is closed.
func WithErrorHandler(fn func(error)) Option {
	return func(opts *options) error {
		opts.onError = fn
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the handle.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		opts.logger = logger
		return nil
	}
}
