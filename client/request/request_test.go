package request_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamwoolhether/curl/client/request"
	"github.com/google/go-cmp/cmp"
)

func TestSpec_FullURL(t *testing.T) {
	testCases := []struct {
		name   string
		url    string
		params []request.Param
		exp    string
	}{
		{
			name: "no params",
			url:  "http://x/y",
			exp:  "http://x/y",
		},
		{
			name:   "single param",
			url:    "http://x/y",
			params: []request.Param{{"a", "1"}},
			exp:    "http://x/y?a=1",
		},
		{
			name:   "params keep insertion order",
			url:    "http://x/y",
			params: []request.Param{{"z", "1"}, {"a", "2"}, {"m", "3"}},
			exp:    "http://x/y?z=1&a=2&m=3",
		},
		{
			name:   "existing query string",
			url:    "http://x/y?a=1",
			params: []request.Param{{"b", "2"}, {"c", "3"}},
			exp:    "http://x/y?a=1&b=2&c=3",
		},
		{
			name:   "trailing question mark",
			url:    "http://x/y?",
			params: []request.Param{{"b", "2"}},
			exp:    "http://x/y?&b=2",
		},
		{
			name:   "values are escaped",
			url:    "http://x/y",
			params: []request.Param{{"q", "a b&c"}},
			exp:    "http://x/y?q=a+b%26c",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := request.New(http.MethodGet, tc.url)
			for _, p := range tc.params {
				spec.AddQueryParam(p.Key, p.Value)
			}

			got := spec.FullURL()
			if got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}

			if len(tc.params) > 0 && strings.Count(got, "?") != 1 {
				t.Errorf("exp exactly one '?' in %q", got)
			}
		})
	}
}

func TestSpec_Finalize_URL(t *testing.T) {
	spec := request.New("get", "http://x/y?a=1").
		AddQueryParam("b", "2").
		AddQueryParam("c", "3")

	req, err := spec.Finalize(t.Context())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if req.Method != http.MethodGet {
		t.Errorf("exp method GET, got %s", req.Method)
	}
	if got := req.URL.String(); got != "http://x/y?a=1&b=2&c=3" {
		t.Errorf("unexpected url %q", got)
	}
	if spec.URL != "http://x/y?a=1" {
		t.Errorf("finalize must not mutate the base url, got %q", spec.URL)
	}
}

func TestSpec_Finalize_BodyRequired(t *testing.T) {
	bodies := map[string]request.Body{
		"bytes":  request.Bytes([]byte("abc")),
		"stream": request.Stream(strings.NewReader("abc")),
		"string": request.String(`{"a":1}`),
		"json":   request.JSON(map[string]int{"a": 1}),
		"opaque": request.Opaque(strings.NewReader("a=1"), "application/x-www-form-urlencoded"),
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		t.Run(method+" without body", func(t *testing.T) {
			_, err := request.New(method, "http://x/y").Finalize(t.Context())
			if !errors.Is(err, request.ErrConfig) {
				t.Fatalf("exp ErrConfig, got %v", err)
			}
			if !errors.Is(err, request.ErrMissingBody) {
				t.Errorf("exp ErrMissingBody, got %v", err)
			}
		})

		for name, body := range bodies {
			t.Run(method+" with "+name, func(t *testing.T) {
				req, err := request.New(method, "http://x/y").SetBody(body).Finalize(t.Context())
				if err != nil {
					t.Fatalf("exp nil err, got %v", err)
				}
				if req.Body == nil {
					t.Error("exp request body")
				}
			})
		}
	}
}

func TestSpec_Finalize_UnsupportedMethod(t *testing.T) {
	for _, method := range []string{"OPTIONS", "CONNECT", "trace", ""} {
		t.Run(method, func(t *testing.T) {
			_, err := request.New(method, "http://x/y").Finalize(t.Context())
			if !errors.Is(err, request.ErrUnsupportedMethod) {
				t.Errorf("exp ErrUnsupportedMethod, got %v", err)
			}
			if !errors.Is(err, request.ErrConfig) {
				t.Errorf("exp ErrConfig, got %v", err)
			}
		})
	}
}

func TestSpec_Finalize_Delete(t *testing.T) {
	req, err := request.New(http.MethodDelete, "http://x/y").Finalize(t.Context())
	if err != nil {
		t.Fatalf("delete without body: %v", err)
	}
	if req.Body != nil {
		t.Error("exp nil body for bodiless DELETE")
	}

	req, err = request.New(http.MethodDelete, "http://x/y").SetBody(request.String(`{"id":1}`)).Finalize(t.Context())
	if err != nil {
		t.Fatalf("delete with body: %v", err)
	}
	b, _ := io.ReadAll(req.Body)
	if string(b) != `{"id":1}` {
		t.Errorf("unexpected body %q", b)
	}
}

func TestSpec_Finalize_GetIgnoresBody(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req, err := request.New(method, "http://x/y").SetBody(request.String("ignored")).Finalize(t.Context())
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		if req.Body != nil {
			t.Errorf("%s: exp body to be ignored", method)
		}
		if ct := req.Header.Get("Content-Type"); ct != "" {
			t.Errorf("%s: exp no content type, got %q", method, ct)
		}
	}
}

func TestSpec_Finalize_ContentTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(path, []byte("file-data"), 0o600); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name    string
		body    request.Body
		expCT   string
		expBody string
	}{
		{"bytes", request.Bytes([]byte{1, 2, 3}), request.ContentTypeOctetStream, "\x01\x02\x03"},
		{"stream", request.Stream(bytes.NewBufferString("streamed")), request.ContentTypeOctetStream, "streamed"},
		{"file", request.File(path), request.ContentTypeOctetStream, "file-data"},
		{"string", request.String(`{"a":"b"}`), request.ContentTypeJSON, `{"a":"b"}`},
		{"json", request.JSON(struct {
			A string `json:"a"`
		}{"b"}), request.ContentTypeJSON, `{"a":"b"}`},
		{"opaque", request.Opaque(strings.NewReader("<x/>"), "application/xml"), "application/xml", "<x/>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := request.New(http.MethodPost, "http://x/y").SetBody(tc.body).Finalize(t.Context())
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}
			defer req.Body.Close()

			if ct := req.Header.Get("Content-Type"); ct != tc.expCT {
				t.Errorf("exp content type %q, got %q", tc.expCT, ct)
			}

			b, err := io.ReadAll(req.Body)
			if err != nil {
				t.Fatalf("reading body: %v", err)
			}
			if diff := cmp.Diff(tc.expBody, string(b)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if req.ContentLength != int64(len(tc.expBody)) {
				t.Errorf("exp content length %d, got %d", len(tc.expBody), req.ContentLength)
			}
		})
	}
}

func TestSpec_Finalize_HeadersVerbatim(t *testing.T) {
	req, err := request.New(http.MethodPost, "http://x/y").
		SetBody(request.String("{}")).
		AddHeader("x-lower-case", "1").
		AddHeader("Content-Type", "application/vnd.custom+json").
		Finalize(t.Context())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if v, ok := req.Header["x-lower-case"]; !ok || v[0] != "1" {
		t.Errorf("exp verbatim header key, got %v", req.Header)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/vnd.custom+json" {
		t.Errorf("exp header override of content type, got %q", ct)
	}
}

func TestSpec_Finalize_ContentTypeAnyCase(t *testing.T) {
	req, err := request.New(http.MethodPost, "http://x/y").
		SetBody(request.JSON(map[string]int{"n": 1})).
		AddHeader("content-type", "text/plain").
		Finalize(t.Context())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var got []string
	for k, v := range req.Header {
		if strings.EqualFold(k, "Content-Type") {
			got = append(got, v...)
		}
	}

	if diff := cmp.Diff([]string{"text/plain"}, got); diff != "" {
		t.Errorf("exp only the configured content type (-want +got):\n%s", diff)
	}
}

func TestSpec_Finalize_FieldErrors(t *testing.T) {
	testCases := []struct {
		name     string
		spec     *request.Spec
		expField string
	}{
		{"empty url", request.New(http.MethodGet, ""), "URL"},
		{"relative url", request.New(http.MethodGet, "not a url"), "URL"},
		{"empty header key", request.New(http.MethodGet, "http://x/y").AddHeader("", "v"), "Headers"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.spec.Finalize(t.Context())
			if !errors.Is(err, request.ErrConfig) {
				t.Fatalf("exp ErrConfig, got %v", err)
			}

			var fe request.FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("exp FieldErrors, got %T", err)
			}
			var found bool
			for field := range fe.Fields() {
				if strings.HasPrefix(field, tc.expField) {
					found = true
				}
			}
			if !found {
				t.Errorf("exp field %q in %v", tc.expField, fe.Fields())
			}
		})
	}
}

func TestSpec_Finalize_MissingFile(t *testing.T) {
	_, err := request.New(http.MethodPut, "http://x/y").
		SetBody(request.File(filepath.Join(t.TempDir(), "missing"))).
		Finalize(t.Context())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("exp os.ErrNotExist, got %v", err)
	}
}

func TestBody_OriginFile(t *testing.T) {
	if _, ok := request.Bytes(nil).OriginFile(); ok {
		t.Error("bytes body must not report an origin file")
	}

	path, ok := request.File("/tmp/a.bin").OriginFile()
	if !ok || path != "/tmp/a.bin" {
		t.Errorf("exp origin file, got %q, %v", path, ok)
	}
}
