// Package progress observes bytes moving through request and response
// bodies without altering them.
//
// A [Reader] instruments a download, an [Upload] instruments a request
// payload, and [NewRoundTripper] installs a Reader around every response
// body a transport returns:
//
//	rt := progress.NewRoundTripper(func(loaded, total int64, done bool) {
//		fmt.Printf("%d/%d done=%t\n", loaded, total, done)
//	}, http.DefaultTransport)
//
// [Log] builds a Func that reports through a [slog.Logger].
package progress

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
)

// ChunkSize caps how many bytes an [Upload] hands out per read.
const ChunkSize = 4 << 10 // 4KB

// Func receives the cumulative number of bytes transferred, the declared
// total (-1 when unknown), and whether the transfer has finished.
type Func func(loaded, total int64, done bool)

// Reader is an io.ReadCloser reporting every read of the wrapped body.
// The final report carries done=true and nothing is reported after it.
type Reader struct {
	rc       io.ReadCloser
	fn       Func
	total    int64
	loaded   int64
	finished bool
}

// NewReader wraps rc. total is the declared length, -1 if unknown.
func NewReader(rc io.ReadCloser, total int64, fn Func) *Reader {
	return &Reader{rc: rc, fn: fn, total: total}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if r.finished {
		return n, err
	}

	if n > 0 {
		r.loaded += int64(n)
	}

	switch {
	case errors.Is(err, io.EOF):
		r.finished = true
		r.fn(r.loaded, r.total, true)
	case err == nil || n > 0:
		r.fn(r.loaded, r.total, false)
	}

	return n, err
}

// Close closes the wrapped body.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// Loaded returns the number of bytes read so far.
func (r *Reader) Loaded() int64 { return r.loaded }

// /////////////////////////////////////////////////////////////////

// transport is an http.RoundTripper wrapping each response body in a Reader.
type transport struct {
	fn   Func
	next http.RoundTripper
}

// NewRoundTripper returns an http.RoundTripper that reports download
// progress for every response produced by next.
func NewRoundTripper(fn Func, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return &transport{fn: fn, next: next}
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil && resp.Body != http.NoBody {
		resp.Body = NewReader(resp.Body, resp.ContentLength, t.fn)
	}

	return resp, nil
}

// /////////////////////////////////////////////////////////////////

// Upload is a request body handing out the source in chunks of at
// most ChunkSize bytes and reporting after every chunk. The source is
// released on EOF, on a read failure, or on Close, whichever comes first.
type Upload struct {
	open func() (io.ReadCloser, error)
	fn   Func
	size int64

	mu       sync.Mutex
	src      io.ReadCloser
	written  int64
	finished bool
	closed   bool
}

// NewUpload instruments the file at path. The file is opened lazily
// on first read.
func NewUpload(path string, size int64, fn Func) *Upload {
	return &Upload{
		open: func() (io.ReadCloser, error) { return openFile(path) },
		fn:   fn,
		size: size,
	}
}

// NewUploadReader instruments an in-memory or streaming source of known size.
func NewUploadReader(r io.Reader, size int64, fn Func) *Upload {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}

	return &Upload{
		open: func() (io.ReadCloser, error) { return rc, nil },
		fn:   fn,
		size: size,
	}
}

// Size returns the declared payload length.
func (u *Upload) Size() int64 { return u.size }

func (u *Upload) Read(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return 0, io.EOF
	}

	if u.src == nil {
		src, err := u.open()
		if err != nil {
			u.closed = true
			return 0, err
		}
		u.src = src
	}

	if len(p) > ChunkSize {
		p = p[:ChunkSize]
	}

	n, err := u.src.Read(p)
	if n > 0 {
		u.written += int64(n)
		u.report(u.written >= u.size)
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			u.report(true)
		}
		u.release()
	}

	return n, err
}

// Close releases the source. It is safe to call more than once.
func (u *Upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.release()
}

// report invokes fn unless completion was already reported.
func (u *Upload) report(done bool) {
	if u.finished {
		return
	}
	if done {
		u.finished = true
	}
	u.fn(u.written, u.size, done)
}

func (u *Upload) release() error {
	if u.closed {
		return nil
	}
	u.closed = true

	if u.src == nil {
		return nil
	}

	return u.src.Close()
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return f, nil
}
