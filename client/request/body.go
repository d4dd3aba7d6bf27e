package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const (
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeJSON        = "application/json"
)

// Kind identifies which payload variant a [Body] carries.
type Kind int

const (
	KindNone Kind = iota
	KindBytes
	KindStream
	KindString
	KindJSON
	KindOpaque
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBytes:
		return "bytes"
	case KindStream:
		return "stream"
	case KindString:
		return "string"
	case KindJSON:
		return "json"
	case KindOpaque:
		return "opaque"
	case KindFile:
		return "file"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Body is the request payload. The zero value is an empty body.
type Body struct {
	kind        Kind
	data        []byte
	reader      io.Reader
	value       any
	contentType string
	path        string
}

// Bytes sends b as application/octet-stream.
func Bytes(b []byte) Body {
	return Body{kind: KindBytes, data: b}
}

// Stream buffers r when the request is finalized and sends it
// as application/octet-stream.
func Stream(r io.Reader) Body {
	return Body{kind: KindStream, reader: r}
}

// String sends s as application/json.
func String(s string) Body {
	return Body{kind: KindString, data: []byte(s)}
}

// JSON encodes v as application/json.
func JSON(v any) Body {
	return Body{kind: KindJSON, value: v}
}

// Opaque sends r untouched with its own content type. An empty
// contentType leaves the header unset.
func Opaque(r io.Reader, contentType string) Body {
	return Body{kind: KindOpaque, reader: r, contentType: contentType}
}

// File sends the file at path as application/octet-stream. The file is
// only opened once the request is sent, and is the only body variant
// that supports upload progress.
func File(path string) Body {
	return Body{kind: KindFile, path: path}
}

// Kind reports the payload variant.
func (b Body) Kind() Kind { return b.kind }

// IsNone reports whether no payload was configured.
func (b Body) IsNone() bool { return b.kind == KindNone }

// OriginFile returns the file the body was sourced from, if any.
func (b Body) OriginFile() (string, bool) {
	return b.path, b.kind == KindFile
}

// wire is the transport-ready form of a Body.
type wire struct {
	body          io.ReadCloser
	getBody       func() (io.ReadCloser, error)
	contentLength int64
	contentType   string
}

// toWire maps the payload variant to a request body and content type.
func (b Body) toWire() (wire, error) {
	switch b.kind {
	case KindNone:
		return wire{contentLength: 0}, nil

	case KindBytes:
		return bufferedWire(b.data, ContentTypeOctetStream), nil

	case KindString:
		return bufferedWire(b.data, ContentTypeJSON), nil

	case KindStream:
		if b.reader == nil {
			return bufferedWire(nil, ContentTypeOctetStream), nil
		}
		data, err := io.ReadAll(b.reader)
		if err != nil {
			return wire{}, fmt.Errorf("buffering stream body: %w", err)
		}
		return bufferedWire(data, ContentTypeOctetStream), nil

	case KindJSON:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(b.value); err != nil {
			return wire{}, fmt.Errorf("encoding json body: %w", err)
		}
		return bufferedWire(bytes.TrimRight(buf.Bytes(), "\n"), ContentTypeJSON), nil

	case KindOpaque:
		w := wire{contentLength: -1, contentType: b.contentType}
		switch r := b.reader.(type) {
		case nil:
			w.contentLength = 0
		case io.ReadCloser:
			w.body = r
		default:
			w.body = io.NopCloser(r)
		}
		if lr, ok := b.reader.(interface{ Len() int }); ok {
			w.contentLength = int64(lr.Len())
		}
		return w, nil

	case KindFile:
		info, err := os.Stat(b.path)
		if err != nil {
			return wire{}, fmt.Errorf("stat body file: %w", err)
		}
		if info.IsDir() {
			return wire{}, fmt.Errorf("body file[%s] is a directory", b.path)
		}
		path := b.path
		getBody := func() (io.ReadCloser, error) {
			return os.Open(path)
		}
		f, err := getBody()
		if err != nil {
			return wire{}, fmt.Errorf("opening body file: %w", err)
		}
		return wire{
			body:          f,
			getBody:       getBody,
			contentLength: info.Size(),
			contentType:   ContentTypeOctetStream,
		}, nil
	}

	return wire{}, fmt.Errorf("unknown body kind %s", b.kind)
}

func bufferedWire(data []byte, contentType string) wire {
	getBody := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	w := wire{
		getBody:       getBody,
		contentLength: int64(len(data)),
		contentType:   contentType,
	}
	if len(data) > 0 {
		w.body, _ = getBody()
	} else {
		w.body = http.NoBody
	}

	return w
}
