package download

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"github.com/adamwoolhether/curl/client/progress"
)

// Option configures [Save].
type Option func(*options) error

type options struct {
	digest       hash.Hash
	expDigest    []byte
	progress     progress.Func
	skipExisting bool
}

// WithChecksum hashes the saved bytes with h and fails the save unless
// the digest matches expected, a hex string in either case.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		want, err := hex.DecodeString(expected)
		if err != nil {
			return fmt.Errorf("expected checksum is not hex: %w", err)
		}
		if len(want) != h.Size() {
			return fmt.Errorf("expected checksum has %d bytes, hash produces %d", len(want), h.Size())
		}

		opts.digest, opts.expDigest = h, want
		return nil
	}
}

// WithProgress reports bytes written to disk. Pair it with
// [progress.Log] for periodic log records.
func WithProgress(fn progress.Func) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}
		opts.progress = fn
		return nil
	}
}

// WithSkipExisting causes Save to return nil immediately when
// the destination file already exists.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}
