package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Decoder turns a response body into dst. dst is always a pointer.
type Decoder interface {
	Decode(body []byte, dst any) error
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(body []byte, dst any) error

func (f DecoderFunc) Decode(body []byte, dst any) error { return f(body, dst) }

// JSONDecoder is the default Decoder.
//
// Path, when set, is a gjson path (e.g. "data.items") selecting the part
// of the document to decode. UseNumber keeps numbers as [json.Number].
type JSONDecoder struct {
	Path      string
	UseNumber bool
}

func (d JSONDecoder) Decode(body []byte, dst any) error {
	if d.Path != "" {
		if !gjson.ValidBytes(body) {
			return errors.New("body is not valid json")
		}

		res := gjson.GetBytes(body, d.Path)
		if !res.Exists() {
			return fmt.Errorf("json path[%s] not found", d.Path)
		}
		body = []byte(res.Raw)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if d.UseNumber {
		dec.UseNumber()
	}

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	return nil
}
