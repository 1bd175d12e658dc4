// Package transport is the single path for remote calls: auth header injection,
// retries with exponential backoff, 401 invalidation and envelope decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

// Transport performs one logical remote call.
type Transport interface {
	Do(ctx context.Context, req Request) (*Envelope, error)
}

// TokenSource is the part of the session store the transport depends on.
type TokenSource interface {
	GetToken(ctx context.Context) (string, bool)
	ClearSession(ctx context.Context) error
}

// Request describes a call relative to the base URL. At most one of JSON, Form and Body is set.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	JSON any   // serialized as application/json
	Form *Form // serialized as multipart/form-data

	// Body is sent unmodified with ContentType.
	Body        []byte
	ContentType string

	// Auth makes the call fail fast without a token.
	Auth bool
}

// Form is a multipart body with an optional file part.
type Form struct {
	Fields map[string]string
	File   *File
}

// File is one uploaded file.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encode renders the request body once so every attempt resends identical bytes.
func (r Request) encode() (body []byte, contentType string, err error) {
	switch {
	case r.Form != nil:
		return r.Form.encode()
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return b, "application/json", nil
	case r.Body != nil:
		ct := r.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		return r.Body, ct, nil
	}
	return nil, "", nil
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, f.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("encode form field %s: %w", k, err)
		}
	}

	if f.File != nil {
		field := f.File.Field
		if field == "" {
			field = "image"
		}
		ct := f.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(f.File.Name)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("encode form file: %w", err)
		}
		if _, err := part.Write(f.File.Data); err != nil {
			return nil, "", fmt.Errorf("encode form file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func joinURL(base, path string, q url.Values) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
