package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// MarshalNoEscape encodes v into JSON without escaping <, >, & into <, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	return encode(v, "")
}

// MarshalIndentNoEscape is MarshalNoEscape with two-space indentation.
// Persisted project documents and prompt payloads use it.
func MarshalIndentNoEscape(v any) ([]byte, error) {
	return encode(v, "  ")
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalFlex tries to unmarshal JSON bytes into v with best effort:
// 1) Direct unmarshal
// 2) Unwrap a payload that was itself encoded as a JSON string, then retry
func UnmarshalFlex(raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	inner, ok := unquote(raw)
	if !ok {
		return err
	}
	if err2 := json.Unmarshal(inner, v); err2 != nil {
		return err
	}
	return nil
}

// unquote handles models that return "{\"a\":1}" instead of {"a":1}.
func unquote(raw []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '"' {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	return []byte(s), true
}

// ErrNotObject is returned by Keys when the payload is not a JSON object.
var ErrNotObject = errors.New("json payload is not an object")

// Keys returns the top-level keys of a JSON object.
func Keys(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if inner, ok := unquote(trimmed); ok && inner[0] == '{' {
			trimmed = inner
		} else {
			return nil, ErrNotObject
		}
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, err
	}
	return m, nil
}
