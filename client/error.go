package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrBodySize caps how much of an unexpected response is kept on
// the returned error.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrTransport wraps failures of the network call itself.
	ErrTransport = errors.New("transport failure")
	// ErrDeserialization is recorded on a Result whose body could not be
	// decoded into the requested destination.
	ErrDeserialization = errors.New("deserialization failure")
	// ErrNoResponse is returned by Result operations that need a response
	// body the result does not carry.
	ErrNoResponse = errors.New("result carries no response body")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is wrapped along with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// UnexpectedStatusError is returned when [WithExpectedStatus] is set and
// the response status differs.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// newStatusError captures at most maxErrBodySize bytes of resp's body.
// The caller still owns resp.
func newStatusError(resp *http.Response) *UnexpectedStatusError {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	var sentinel error = ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		sentinel = fmt.Errorf("%w: %w", ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(b),
		Err:        sentinel,
	}
}
