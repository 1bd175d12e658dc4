package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
)

// Text is a message field that arrives as a plain string or as {"message": ...} nested to any depth.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		inner, ok := obj["message"]
		if !ok {
			*t = ""
			return nil
		}
		return t.UnmarshalJSON(inner)
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*t = ""
		for _, item := range list {
			var x Text
			if err := x.UnmarshalJSON(item); err == nil && x != "" {
				*t = x
				return nil
			}
		}
	default:
		// numbers and booleans keep their literal form
		*t = Text(b)
	}
	return nil
}

// Envelope is the canonical response shape {success, message, data}.
type Envelope struct {
	Success *bool           `json:"success"`
	Message Text            `json:"message"`
	Data    json.RawMessage `json:"data"`
	// Raw is the full body, for endpoints that put fields next to data.
	Raw json.RawMessage `json:"-"`
}

// OK reports whether the server signalled success. A missing flag counts as success.
func (e *Envelope) OK() bool {
	return e == nil || e.Success == nil || *e.Success
}

// Text returns the normalized server message.
func (e *Envelope) Text() string {
	if e == nil {
		return ""
	}
	return string(e.Message)
}

// Decode unmarshals the whole body into dst.
func (e *Envelope) Decode(dst any) error {
	if e == nil || len(e.Raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Raw, dst); err != nil {
		return &errs.DecodeError{Cause: err}
	}
	return nil
}

// HasData reports whether data is present and not null.
func (e *Envelope) HasData() bool {
	if e == nil {
		return false
	}
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// DecodeOne decodes data as a single T. An array yields its first element.
// ok is false when data is absent, null or an empty array.
func DecodeOne[T any](e *Envelope) (v *T, ok bool, err error) {
	if !e.HasData() {
		return nil, false, nil
	}
	d := bytes.TrimSpace(e.Data)
	if d[0] == '[' {
		var list []T
		if err := json.Unmarshal(d, &list); err != nil {
			return nil, false, &errs.DecodeError{Cause: err}
		}
		if len(list) == 0 {
			return nil, false, nil
		}
		return &list[0], true, nil
	}
	var one T
	if err := json.Unmarshal(d, &one); err != nil {
		return nil, false, &errs.DecodeError{Cause: err}
	}
	return &one, true, nil
}

// DecodeList decodes data as []T. An object yields a one-element slice, null an empty one.
func DecodeList[T any](e *Envelope) ([]T, error) {
	if !e.HasData() {
		return []T{}, nil
	}
	d := bytes.TrimSpace(e.Data)
	if d[0] == '{' {
		var one T
		if err := json.Unmarshal(d, &one); err != nil {
			return nil, &errs.DecodeError{Cause: err}
		}
		return []T{one}, nil
	}
	var list []T
	if err := json.Unmarshal(d, &list); err != nil {
		return nil, &errs.DecodeError{Cause: err}
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// parseEnvelope normalizes a 2xx body. Empty bodies are a bare success;
// top-level arrays and scalars become data.
func parseEnvelope(body []byte) (*Envelope, error) {
	b := bytes.TrimSpace(body)
	if len(b) == 0 {
		return &Envelope{}, nil
	}
	if !json.Valid(b) {
		return nil, errors.New("response is not valid JSON")
	}
	if b[0] != '{' {
		return &Envelope{Data: json.RawMessage(b), Raw: json.RawMessage(b)}, nil
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		// e.g. success:"yes"; keep the body but report the shape problem
		return nil, err
	}
	env.Raw = json.RawMessage(b)
	return &env, nil
}

// messageOf extracts the server text from an error body, trying message then error.
func messageOf(body []byte) string {
	b := bytes.TrimSpace(body)
	if len(b) == 0 || b[0] != '{' {
		return ""
	}
	var msg struct {
		Message Text `json:"message"`
		Error   Text `json:"error"`
	}
	if err := json.Unmarshal(b, &msg); err != nil {
		return ""
	}
	if msg.Message != "" {
		return string(msg.Message)
	}
	return string(msg.Error)
}

// Int64 accepts JSON numbers and numeric strings.
type Int64 int64

func (n *Int64) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*n = Int64(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Int64(v)
	return nil
}
