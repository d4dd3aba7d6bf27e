package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/curl/client/event"
	"github.com/adamwoolhether/curl/client/throttle"
	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error

type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	connectTimeout    *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	tracer            trace.Tracer
	requestID         string
	decoder           Decoder
}

// WithClient replaces the base [http.Client]. The Client keeps its own
// copy, so later changes to hc are not seen.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout. Calls driven by an
// event handle always run without one.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithConnectTimeout bounds dialing. It only applies when the base
// transport is an [*http.Transport].
func WithConnectTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("connect timeout must not be negative")
		}
		c.connectTimeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithTracer records a span per call and propagates its context in the
// request headers.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = tracer
		return nil
	}
}

// WithRequestID sets a random uuid on header for every request that
// does not carry one. An empty header defaults to X-Request-ID.
func WithRequestID(header string) Option {
	return func(c *options) error {
		if header == "" {
			header = defaultRequestIDHeader
		}
		c.requestID = header
		return nil
	}
}

// WithDecoder replaces the default [JSONDecoder].
func WithDecoder(d Decoder) Option {
	return func(c *options) error {
		if d == nil {
			return errors.New("decoder must not be nil")
		}
		c.decoder = d
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// ExecOption is a functional option for [Client.Execute].
type ExecOption func(*execOpts) error

type execOpts struct {
	handle     *event.Handle
	dst        any
	useJSONNum bool
	jsonPath   string
	expStatus  int
}

// WithEvent drives h through the call. The handle owns the response
// once the call returns.
func WithEvent(h *event.Handle) ExecOption {
	return func(opts *execOpts) error {
		if h == nil {
			return errors.New("event handle must not be nil")
		}
		opts.handle = h
		return nil
	}
}

// WithDestination decodes the response body into dst.
func WithDestination[T any](dst *T) ExecOption {
	return func(opts *execOpts) error {
		if dst == nil {
			return errors.New("destination must not be nil")
		}
		opts.dst = dst
		return nil
	}
}

// WithJSONNumb tells the default decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumb() ExecOption {
	return func(opts *execOpts) error {
		opts.useJSONNum = true
		return nil
	}
}

// WithJSONPath makes the default decoder decode only the value at path.
// See [JSONDecoder].
func WithJSONPath(path string) ExecOption {
	return func(opts *execOpts) error {
		if path == "" {
			return errors.New("json path must not be empty")
		}
		opts.jsonPath = path
		return nil
	}
}

// WithExpectedStatus fails the call with an [UnexpectedStatusError] when
// the response status differs from code.
func WithExpectedStatus(code int) ExecOption {
	return func(opts *execOpts) error {
		if code < 100 || code > 999 {
			return fmt.Errorf("invalid status code[%d]", code)
		}
		opts.expStatus = code
		return nil
	}
}
