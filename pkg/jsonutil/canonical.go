// Package jsonutil provides deterministic JSON encoding helpers shared by the
// store, the recall engine and the audit trail.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CanonicalMarshal produces deterministic JSON:
// - keys sorted lexicographically
// - no whitespace, no HTML escaping
// - numbers in shortest form (1.0 and 1 encode identically)
// - null serialized as null
func CanonicalMarshal(v any) ([]byte, error) {
	raw, err := marshalNoEscape(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}

	generic, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Equal reports whether a and b have the same canonical encoding. Values that
// cannot be encoded are never equal.
func Equal(a, b any) bool {
	ca, err := CanonicalMarshal(a)
	if err != nil {
		return false
	}
	cb, err := CanonicalMarshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

// Decode parses JSON into generic values, keeping numbers as json.Number so
// large integers survive a read-modify-write cycle untouched.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if rest := bytes.TrimSpace(data[dec.InputOffset():]); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

// MarshalIndent encodes v with two-space indentation and without HTML
// escaping, the human-diffable layout used for store and backup files.
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Normalize converts any JSON-encodable Go value into the generic form Decode
// produces: map[string]any, []any, string, bool, nil and json.Number.
// Typed maps, structs and time.Time values come out as their JSON encoding.
func Normalize(v any) (any, error) {
	raw, err := marshalNoEscape(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return Decode(raw)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := marshalNoEscape(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case json.Number:
		buf.WriteString(canonicalNumber(val))

	default:
		// Primitives: string, bool, nil
		raw, err := marshalNoEscape(val)
		if err != nil {
			return err
		}
		buf.Write(raw)
	}
	return nil
}

// canonicalNumber keeps integer literals verbatim (no float rounding) and
// reduces everything else to its shortest float representation.
func canonicalNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
