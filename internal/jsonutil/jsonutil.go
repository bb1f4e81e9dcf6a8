// Package jsonutil provides UTF-8-safe JSON helpers shared by the session
// store, the providers, and the log writers.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Marshal encodes v without HTML escaping and without a trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalString is Marshal returning a string.
func MarshalString(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sanitize replaces invalid UTF-8 sequences so the value survives a
// round-trip through encoding/json, which would otherwise substitute
// replacement runes inconsistently across readers.
func Sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// Unmarshal decodes data into v, tolerating a UTF-8 BOM.
func Unmarshal(data []byte, v any) error {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return json.Unmarshal(data, v)
}
