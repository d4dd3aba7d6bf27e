package download_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamwoolhether/curl/client/download"
)

func TestSave(t *testing.T) {
	payload := []byte("hello download world")
	sum := sha256.Sum256(payload)
	other := sha256.Sum256([]byte("something else"))

	testCases := []struct {
		name          string
		contentLength int64
		opts          []download.Option
		expErr        error
	}{
		{
			name:          "known length",
			contentLength: int64(len(payload)),
		},
		{
			name:          "unknown length",
			contentLength: -1,
		},
		{
			name:          "checksum pass",
			contentLength: int64(len(payload)),
			opts:          []download.Option{download.WithChecksum(sha256.New(), hex.EncodeToString(sum[:]))},
		},
		{
			name:          "checksum upper case",
			contentLength: int64(len(payload)),
			opts:          []download.Option{download.WithChecksum(sha256.New(), strings.ToUpper(hex.EncodeToString(sum[:])))},
		},
		{
			name:          "checksum fail",
			contentLength: int64(len(payload)),
			opts:          []download.Option{download.WithChecksum(sha256.New(), hex.EncodeToString(other[:]))},
			expErr:        download.ErrChecksumMismatch,
		},
		{
			name:          "content length mismatch",
			contentLength: int64(len(payload)) + 10,
			expErr:        download.ErrContentLengthMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			dest := filepath.Join(dir, "out.bin")

			err := download.Save(t.Context(), bytes.NewReader(payload), tc.contentLength, dest, nil, tc.opts...)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Fatalf("exp %v, got %v", tc.expErr, err)
				}
				if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
					t.Error("exp no destination file on failure")
				}
				entries, _ := os.ReadDir(dir)
				if len(entries) != 0 {
					t.Errorf("exp temp file to be removed, found %d entries", len(entries))
				}
				return
			}

			if err != nil {
				t.Fatalf("exp nil err, got %v", err)
			}

			got, err := os.ReadFile(dest)
			if err != nil {
				t.Fatalf("reading file: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("file contents mismatch; got %q, want %q", got, payload)
			}
		})
	}
}

func TestSave_Progress(t *testing.T) {
	payload := strings.Repeat("p", 10_000)
	dest := filepath.Join(t.TempDir(), "progress.bin")

	var last int64
	var done int
	fn := func(loaded, total int64, isDone bool) {
		last = loaded
		if isDone {
			done++
		}
	}

	if err := download.Save(t.Context(), strings.NewReader(payload), int64(len(payload)), dest, nil, download.WithProgress(fn)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if last != int64(len(payload)) || done != 1 {
		t.Errorf("exp final report of %d with one done, got %d and %d", len(payload), last, done)
	}
}

func TestSave_SkipExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "existing.bin")
	if err := os.WriteFile(dest, []byte("original"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := download.Save(t.Context(), strings.NewReader("replacement"), -1, dest, nil, download.WithSkipExisting()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Errorf("exp existing file to be kept, got %q", got)
	}
}

func TestSave_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dest := filepath.Join(t.TempDir(), "cancelled.bin")
	err := download.Save(ctx, io.LimitReader(neverEnding{}, 1<<20), -1, dest, nil)
	if !errors.Is(err, download.ErrDownloadCancelled) {
		t.Errorf("exp ErrDownloadCancelled, got %v", err)
	}
}

func TestSave_InvalidOptions(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "x")

	testCases := []struct {
		name string
		dest string
		opt  download.Option
	}{
		{name: "empty dest", dest: "", opt: download.WithSkipExisting()},
		{name: "nil hash", dest: dest, opt: download.WithChecksum(nil, "abc")},
		{name: "empty checksum", dest: dest, opt: download.WithChecksum(sha256.New(), "")},
		{name: "checksum not hex", dest: dest, opt: download.WithChecksum(sha256.New(), "zz")},
		{name: "checksum wrong size", dest: dest, opt: download.WithChecksum(sha256.New(), "deadbeef")},
		{name: "nil progress", dest: dest, opt: download.WithProgress(nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := download.Save(t.Context(), strings.NewReader("x"), 1, tc.dest, nil, tc.opt); err == nil {
				t.Error("exp error")
			}
		})
	}
}

type neverEnding struct{}

func (neverEnding) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'n'
	}
	return len(p), nil
}
