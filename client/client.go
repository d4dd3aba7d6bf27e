package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/adamwoolhether/curl/client/event"
	"github.com/adamwoolhether/curl/client/progress"
	"github.com/adamwoolhether/curl/client/request"
	"github.com/adamwoolhether/curl/client/throttle"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultTimeout         = 3 * time.Minute
	defaultConnectTimeout  = 3 * time.Minute
	defaultRequestIDHeader = "X-Request-ID"
)

// Client executes request specs. It holds only immutable configuration;
// every call works on its own copy of the base *http.Client, so a call
// that disables the timeout or installs progress reporting never affects
// another.
type Client struct {
	c         *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	decoder   Decoder
	requestID string
}

// Build creates a Client. Without options it uses a fresh *http.Client
// with a three minute timeout and connect timeout.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		c:         &http.Client{Timeout: defaultTimeout},
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer(""),
		decoder:   JSONDecoder{},
		requestID: opts.requestID,
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if opts.decoder != nil {
		client.decoder = opts.decoder
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = withConnectTimeout(http.DefaultTransport, defaultConnectTimeout)
	}
	if opts.connectTimeout != nil {
		if _, ok := transport.(*http.Transport); !ok {
			return nil, errors.New("connect timeout requires an *http.Transport")
		}
		transport = withConnectTimeout(transport, *opts.connectTimeout)
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, transport, throttle.WithLogger(func() *slog.Logger { return client.logger }))
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// withConnectTimeout clones rt with a dialer bounded by d. Anything other
// than an *http.Transport is returned unchanged.
func withConnectTimeout(rt http.RoundTripper, d time.Duration) http.RoundTripper {
	t, ok := rt.(*http.Transport)
	if !ok {
		return rt
	}

	t = t.Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   d,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return t
}

// Execute finalizes spec, runs it and shapes the outcome:
//
//   - a loop started by the event handle yields KindStream
//   - upload or download progress yields KindProgress
//   - a destination yields KindValue
//   - anything else yields KindResponse
//
// When an event handle is given it is closed on every error path.
// Errors of a running loop are never returned here; see [event.Handle.Err].
func (c *Client) Execute(ctx context.Context, spec *request.Spec, optFns ...ExecOption) (*Result, error) {
	var opts execOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			closeHandle(opts.handle, c.logger)
			return nil, fmt.Errorf("applying exec option: %w", err)
		}
	}

	h := opts.handle

	if spec == nil {
		closeHandle(h, c.logger)
		return nil, fmt.Errorf("%w: nil request spec", request.ErrConfig)
	}

	ctx, span := c.tracer.Start(ctx, "curl.execute")
	defer span.End()

	res, err := c.execute(ctx, spec, h, opts)
	if err != nil {
		closeHandle(h, c.logger)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("result", res.kind.String()))
	if res.resp != nil {
		span.SetAttributes(attribute.Int("status", res.resp.StatusCode))
	}

	return res, nil
}

func (c *Client) execute(ctx context.Context, spec *request.Spec, h *event.Handle, opts execOpts) (*Result, error) {
	if h != nil {
		if err := h.Begin(spec.Body); err != nil {
			return nil, err
		}
	}

	req, err := spec.Finalize(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalizing request: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("method", req.Method),
		attribute.String("url", req.URL.Redacted()),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.requestID != "" && !hasHeader(req.Header, c.requestID) {
		req.Header.Set(c.requestID, uuid.New().String())
	}

	var download, upload progress.Func
	if h != nil {
		download = h.DownloadProgress()

		// GET and HEAD leave Finalize without a body, so there is
		// nothing to report on.
		var origin string
		if upload, origin = h.UploadProgress(); upload != nil {
			if req.Body == nil || req.Body == http.NoBody {
				upload = nil
			} else {
				req.Body.Close()

				size, fn := req.ContentLength, upload
				req.Body = progress.NewUpload(origin, size, fn)
				req.GetBody = func() (io.ReadCloser, error) {
					return progress.NewUpload(origin, size, fn), nil
				}
			}
		}
	}

	resp, err := c.callClient(h != nil, download).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if opts.expStatus != 0 && resp.StatusCode != opts.expStatus {
		statusErr := newStatusError(resp)
		c.release(resp)
		return nil, statusErr
	}

	res := Result{
		resp:   resp,
		handle: h,
		logger: c.logger,
	}

	if h != nil {
		if err := h.Attach(resp); err != nil {
			return nil, err
		}

		if h.Loop() != event.LoopNone {
			res.kind = KindStream
			return &res, nil
		}
	}

	switch {
	case download != nil || upload != nil:
		res.kind = KindProgress

	case opts.dst != nil:
		res.kind = KindValue
		if err := c.decode(&res, opts); err != nil {
			return nil, err
		}

	default:
		res.kind = KindResponse
	}

	return &res, nil
}

// callClient returns the per-call copy of the base client. Streaming
// calls run without a timeout, and download progress wraps the transport.
func (c *Client) callClient(streaming bool, download progress.Func) *http.Client {
	hc := *c.c

	if streaming {
		hc.Timeout = 0
	}

	if download != nil {
		next := hc.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		hc.Transport = progress.NewRoundTripper(download, next)
	}

	return &hc
}

// decode reads the whole body into the destination and closes the
// response. A read failure aborts the call; a decode failure is only
// recorded on res.
func (c *Client) decode(res *Result, opts execOpts) error {
	defer func() {
		var closeErr error
		if res.handle != nil {
			closeErr = res.handle.Close()
		} else {
			closeErr = res.resp.Body.Close()
		}
		if closeErr != nil {
			c.logger.Error("failed to close response body", "error", closeErr)
		}
	}()

	b, err := io.ReadAll(res.resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}

	dec := c.decoder
	if jd, ok := dec.(JSONDecoder); ok {
		if opts.useJSONNum {
			jd.UseNumber = true
		}
		if opts.jsonPath != "" {
			jd.Path = opts.jsonPath
		}
		dec = jd
	}

	res.value = opts.dst
	if err := dec.Decode(b, opts.dst); err != nil {
		res.err = fmt.Errorf("%w: %w", ErrDeserialization, err)
		c.logger.Error("failed to decode response", "status", res.resp.StatusCode, "error", err)
	}

	return nil
}

// release drains what is left of an unused body and closes it.
func (c *Client) release(resp *http.Response) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrBodySize)); err != nil {
		c.logger.Error("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

// hasHeader matches key case-insensitively, since spec headers are set
// verbatim and may not be canonical.
func hasHeader(h http.Header, key string) bool {
	for k := range h {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func closeHandle(h *event.Handle, logger *slog.Logger) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		logger.Error("failed to close event handle", "handle", h.ID(), "error", err)
	}
}
