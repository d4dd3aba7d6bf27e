// Package download streams an HTTP response body to disk.
//
// [Save] writes the body to a temporary file alongside the destination
// path, then renames it on success. Checksum verification, progress
// reporting and skipping existing files are enabled with options:
//
//	err := download.Save(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//		download.WithProgress(onProgress),
//	)
//
// Most callers reach it through client.Result.SaveTo.
package download
