// Package throttle provides an [http.RoundTripper] that rate-limits
// outbound HTTP calls using a token-bucket algorithm from
// [golang.org/x/time/rate].
//
// Wrap an existing transport with [NewRoundTripper]:
//
//	rt, err := throttle.NewRoundTripper(throttle.Config{RPS: 10, Burst: 5}, http.DefaultTransport)
//	httpClient := &http.Client{Transport: rt}
//
// When the limit is exceeded, calls block until a token becomes
// available or the request context is cancelled. Most callers enable it
// through client.WithThrottle instead.
package throttle
