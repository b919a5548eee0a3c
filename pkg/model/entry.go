package model

import (
	"fmt"
	"time"

	"github.com/asecn/memcore/pkg/jsonutil"
)

// Reserved entry keys.
const (
	FieldTimestamp = "timestamp"
	FieldSource    = "source"
	FieldData      = "data"
	FieldID        = "id"
	FieldTags      = "tags"
)

// TimestampLayout is the layout used when memcore stamps an entry.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one timestamped structured record. Keys other than the reserved
// ones are caller-defined and preserved verbatim.
type Entry map[string]any

// ID returns the entry id, or "" when absent or not a string.
func (e Entry) ID() string {
	s, _ := e[FieldID].(string)
	return s
}

// Timestamp returns the raw timestamp string.
func (e Entry) Timestamp() string {
	s, _ := e[FieldTimestamp].(string)
	return s
}

// Source returns the producing subsystem tag.
func (e Entry) Source() string {
	s, _ := e[FieldSource].(string)
	return s
}

// Tags returns the string tags of the entry. Non-string elements are skipped.
func (e Entry) Tags() []string {
	switch v := e[FieldTags].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// HasAnyTag reports whether the entry carries at least one of tags.
func (e Entry) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	for _, t := range e.Tags() {
		if _, ok := want[t]; ok {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy of the entry.
func (e Entry) Clone() Entry {
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// FormatTimestamp renders t the way memcore stamps entries.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// EntryFromJSON decodes a single JSON object into an Entry.
func EntryFromJSON(data []byte) (Entry, error) {
	v, err := jsonutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode entry: not a JSON object")
	}
	return Entry(obj), nil
}
