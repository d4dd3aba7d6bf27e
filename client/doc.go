// Package client executes declarative request specs over [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//
// # Executing Requests
//
// Describe the call with a [request.Spec] and run it with [Client.Execute].
// The [Result] tells which shape the outcome took:
//
//	spec := request.New(http.MethodGet, "https://api.example.com/v1/items").
//		AddQueryParam("page", "2")
//
//	var items []Item
//	res, err := c.Execute(ctx, spec, client.WithDestination(&items))
//
// # Streaming
//
// An [event.Handle] passed with [WithEvent] can report transfer progress
// and, once the response arrives, consume the body in the background:
//
//	h, _ := event.New(func(h *event.Handle) error {
//		return h.WatchLines(func(line string) { fmt.Println(line) })
//	})
//	res, err := c.Execute(ctx, spec, client.WithEvent(h))
//	// ...
//	res.Close() // stops the loop
//
// # Saving to Disk
//
// A response result can be streamed to a file with [Result.SaveTo],
// optionally verifying a checksum:
//
//	err = res.SaveTo(ctx, "/tmp/file.bin",
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
package client
