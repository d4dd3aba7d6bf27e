// Package event binds a live session to a single HTTP call.
//
// A [Handle] moves through two phases. Before the call it accepts
// progress callbacks and an [Executor]; after the call it can start one
// background loop consuming the response body line by line
// ([Handle.WatchLines]) or chunk by chunk ([Handle.ReadChunks]):
//
//	h, err := event.New(func(h *event.Handle) error {
//		if err := h.OnDownloadProgress(onProgress); err != nil {
//			return err
//		}
//		return h.WatchLines(func(line string) {
//			fmt.Println(line)
//		})
//	})
//
// The hook runs once per phase, and operations that do not belong to
// the current phase are no-ops. A running loop stops on end of stream,
// on failure, or when [Handle.Close] closes the response body under it.
package event

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/adamwoolhether/curl/client/progress"
	"github.com/adamwoolhether/curl/client/request"
	"github.com/google/uuid"
)

// ChunkSize is the largest buffer handed to a ReadChunks callback.
const ChunkSize = 4 << 10 // 4KB

var (
	// ErrPrecondition is returned when a hook cannot be installed for the
	// request it is bound to.
	ErrPrecondition = errors.New("precondition failed")
	// ErrAlreadyRunning is returned when a second loop is started on a handle.
	ErrAlreadyRunning = errors.New("loop already running")
	// ErrClosed is returned when the engine drives a handle that was closed.
	ErrClosed = errors.New("handle closed")
)

// LoopError is the terminal failure of a background loop.
type LoopError struct {
	Loop LoopKind
	Err  error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("%s loop: %v", e.Loop, e.Err)
}

func (e *LoopError) Unwrap() error {
	return e.Err
}

// Phase is the lifecycle stage of a Handle.
type Phase int

const (
	BeforeCall Phase = iota
	AfterCall
	Closed
)

func (p Phase) String() string {
	switch p {
	case BeforeCall:
		return "beforeCall"
	case AfterCall:
		return "afterCall"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// LoopKind identifies the background loop started on a Handle.
type LoopKind int

const (
	LoopNone LoopKind = iota
	LoopLines
	LoopChunks
)

func (k LoopKind) String() string {
	switch k {
	case LoopNone:
		return "none"
	case LoopLines:
		return "line-watch"
	case LoopChunks:
		return "byte-read"
	}
	return fmt.Sprintf("loop(%d)", int(k))
}

// Hook configures a Handle. It runs once in BeforeCall and once in AfterCall.
type Hook func(h *Handle) error

// Handle is the event session of one call.
type Handle struct {
	id      string
	hook    Hook
	logger  *slog.Logger
	onError func(error)

	mu       sync.Mutex
	phase    Phase
	loop     LoopKind
	executor Executor
	download progress.Func
	upload   progress.Func
	bound    bool
	origin   string
	hasFile  bool
	resp     *http.Response
	loopErr  error

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// New creates a Handle in the BeforeCall phase. hook may be nil.
func New(hook Hook, optFns ...Option) (*Handle, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying event option: %w", err)
		}
	}

	h := &Handle{
		id:       uuid.New().String(),
		hook:     hook,
		logger:   slog.Default(),
		onError:  opts.onError,
		executor: goExecutor{},
		done:     make(chan struct{}),
	}
	if opts.logger != nil {
		h.logger = opts.logger
	}
	if opts.executor != nil {
		h.executor = opts.executor
	}

	return h, nil
}

// ID uniquely identifies the handle in log records.
func (h *Handle) ID() string { return h.id }

// Phase returns the current lifecycle stage.
func (h *Handle) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.phase
}

// Loop returns the kind of loop started on the handle, if any.
func (h *Handle) Loop() LoopKind {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.loop
}

// Response returns the response bound in AfterCall, or nil.
func (h *Handle) Response() *http.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.resp
}

// Done returns a channel that is closed once the handle is closed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err blocks until the handle is closed and returns the loop's terminal
// failure. It is nil when the stream ended or the handle was closed.
func (h *Handle) Err() error {
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.loopErr
}

// /////////////////////////////////////////////////////////////////
// BeforeCall

// OnDownloadProgress reports progress while the response body is read.
// It is a no-op outside BeforeCall.
func (h *Handle) OnDownloadProgress(fn progress.Func) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase != BeforeCall {
		return nil
	}
	if fn == nil {
		return errors.New("progress func must not be nil")
	}

	h.download = fn
	return nil
}

// OnUploadProgress reports progress while the request body is sent. The
// request body must come from a file. It is a no-op outside BeforeCall.
func (h *Handle) OnUploadProgress(fn progress.Func) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase != BeforeCall {
		return nil
	}
	if fn == nil {
		return errors.New("progress func must not be nil")
	}
	if h.bound && !h.hasFile {
		return fmt.Errorf("%w: upload progress requires a file body", ErrPrecondition)
	}

	h.upload = fn
	return nil
}

// SetExecutor selects where loops started later run. It is a no-op
// outside BeforeCall.
func (h *Handle) SetExecutor(e Executor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase != BeforeCall || e == nil {
		return
	}

	h.executor = e
}

// DownloadProgress returns the installed download callback, if any.
func (h *Handle) DownloadProgress() progress.Func {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.download
}

// UploadProgress returns the installed upload callback and the origin
// file it applies to.
func (h *Handle) UploadProgress() (progress.Func, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.upload, h.origin
}

// Begin binds the request body and runs the hook in BeforeCall.
func (h *Handle) Begin(body request.Body) error {
	h.mu.Lock()
	if h.phase != BeforeCall {
		h.mu.Unlock()
		return ErrClosed
	}
	h.bound = true
	h.origin, h.hasFile = body.OriginFile()
	h.mu.Unlock()

	if h.hook != nil {
		if err := h.hook(h); err != nil {
			return fmt.Errorf("before call hook: %w", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.upload != nil && !h.hasFile {
		return fmt.Errorf("%w: upload progress requires a file body", ErrPrecondition)
	}

	return nil
}

// Attach hands resp to the handle, moves it to AfterCall and runs the
// hook. From here on the handle owns resp.
func (h *Handle) Attach(resp *http.Response) error {
	h.mu.Lock()
	if h.phase != BeforeCall {
		h.mu.Unlock()
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return ErrClosed
	}
	h.resp = resp
	h.phase = AfterCall
	h.mu.Unlock()

	if h.hook != nil {
		if err := h.hook(h); err != nil {
			return fmt.Errorf("after call hook: %w", err)
		}
	}

	return nil
}

// /////////////////////////////////////////////////////////////////
// AfterCall

// WatchLines starts a loop calling fn with every line of the response
// body, without its line terminator. Calls never overlap. It is a no-op
// outside AfterCall.
func (h *Handle) WatchLines(fn func(line string)) error {
	body, err := h.startLoop(LoopLines)
	if err != nil || body == nil {
		return err
	}

	return h.run(LoopLines, func() error {
		br := bufio.NewReader(body)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				fn(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
			}
			if err != nil {
				return err
			}
		}
	})
}

// ReadChunks starts a loop calling fn with every non-empty read of at
// most ChunkSize bytes. fn owns the slice it receives. It is a no-op
// outside AfterCall.
func (h *Handle) ReadChunks(fn func(chunk []byte)) error {
	body, err := h.startLoop(LoopChunks)
	if err != nil || body == nil {
		return err
	}

	return h.run(LoopChunks, func() error {
		for {
			buf := make([]byte, ChunkSize)
			n, err := body.Read(buf)
			if n > 0 {
				fn(buf[:n])
			}
			if err != nil {
				return err
			}
		}
	})
}

// startLoop claims the loop slot. A nil body with a nil error means the
// handle is not in AfterCall.
func (h *Handle) startLoop(kind LoopKind) (io.Reader, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase != AfterCall {
		return nil, nil
	}
	if h.loop != LoopNone {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, h.loop)
	}
	if h.resp == nil || h.resp.Body == nil {
		return nil, nil
	}

	h.loop = kind
	return h.resp.Body, nil
}

// run schedules loop on the executor.
func (h *Handle) run(kind LoopKind, loop func() error) error {
	h.mu.Lock()
	executor := h.executor
	h.mu.Unlock()

	h.logger.Info("event loop started", "handle", h.id, "loop", kind.String())

	err := executor.Execute(func() {
		h.finish(kind, consume(loop))
	})
	if err != nil {
		h.Close()
		return fmt.Errorf("scheduling %s loop: %w", kind, err)
	}

	return nil
}

// consume runs loop, turning a callback panic into an error.
func consume(loop func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panic: %v", rec)
		}
	}()

	return loop()
}

// finish decides whether err ended the stream, cancelled it, or failed
// it, and closes the handle.
func (h *Handle) finish(kind LoopKind, err error) {
	h.mu.Lock()
	cancelled := h.phase == Closed
	h.mu.Unlock()

	switch {
	case errors.Is(err, io.EOF):
		h.logger.Info("event loop finished", "handle", h.id, "loop", kind.String())

	case cancelled:
		h.logger.Info("event loop cancelled", "handle", h.id, "loop", kind.String())

	default:
		loopErr := &LoopError{Loop: kind, Err: err}

		h.mu.Lock()
		h.loopErr = loopErr
		h.mu.Unlock()

		h.logger.Error("event loop failed", "handle", h.id, "loop", kind.String(), "error", err)
		if h.onError != nil {
			h.onError(loopErr)
		}
	}

	if err := h.Close(); err != nil {
		h.logger.Error("failed to close response body", "handle", h.id, "error", err)
	}
}

// Close stops any running loop by closing the response body, and moves
// the handle to Closed. It is safe to call more than once and from any
// goroutine; the body is closed exactly once.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.phase = Closed
		resp := h.resp
		h.mu.Unlock()

		if resp != nil && resp.Body != nil {
			h.closeErr = resp.Body.Close()
		}

		close(h.done)
	})

	return h.closeErr
}
