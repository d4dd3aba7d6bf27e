// Package curl exposes the client builder.
//
// Requests are described with [request.Spec] and run with
// [client.Client.Execute]; see the client package for the full surface.
package curl

import (
	"github.com/adamwoolhether/curl/client"
	"github.com/adamwoolhether/curl/client/request"
)

// New instantiates a new *client.Client with the provided options.
// If not specified, a fresh http.Client with three minute timeouts is used.
func New(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// Get returns a GET spec for rawURL.
func Get(rawURL string) *request.Spec {
	return request.New("GET", rawURL)
}

// Post returns a POST spec for rawURL carrying body.
func Post(rawURL string, body request.Body) *request.Spec {
	return request.New("POST", rawURL).SetBody(body)
}
