package recall

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/model"
)

// Query selects entries. It is one of All, Text, Fields or Invalid.
type Query interface {
	isQuery()
}

// All matches every entry.
type All struct{}

// Text is a substring search. With Fields set, only those fields are
// searched and only string values can match; otherwise the entry's
// canonical JSON encoding is searched.
type Text struct {
	Text          string
	Fields        []string
	CaseSensitive bool
}

// Fields matches when every named field satisfies its matcher.
type Fields struct {
	Matchers map[string]Matcher
}

// Invalid never matches. Reason describes the rejected input.
type Invalid struct {
	Reason string
}

func (All) isQuery()     {}
func (Text) isQuery()    {}
func (Fields) isQuery()  {}
func (Invalid) isQuery() {}

// Matcher tests one field value. present is false when the entry lacks the
// field. The set of matchers is closed.
type Matcher interface {
	match(v any, present bool) bool
}

// Ignore matches regardless of the field.
type Ignore struct{}

// Contains matches a string field containing Text.
type Contains struct {
	Text          string
	CaseSensitive bool
}

// Equals matches a number or boolean field equal to Value. Values of
// different kinds are never equal.
type Equals struct {
	Value any
}

// ContainsAll matches an array field holding every one of Values, in any
// order.
type ContainsAll struct {
	Values []any
}

// DeepEqual matches a field whose canonical JSON equals Value's.
type DeepEqual struct {
	Value any
}

// Subset matches an object field whose keys named in Fields are each deep
// equal to the given value. Other keys of the field are ignored.
type Subset struct {
	Fields map[string]any
}

func (Ignore) match(any, bool) bool { return true }

func (m Contains) match(v any, present bool) bool {
	s, ok := v.(string)
	if !present || !ok {
		return false
	}
	return containsText(s, m.Text, m.CaseSensitive)
}

func (m Equals) match(v any, present bool) bool {
	if !present || kindOf(v) != kindOf(m.Value) {
		return false
	}
	return jsonutil.Equal(v, m.Value)
}

func (m ContainsAll) match(v any, present bool) bool {
	if !present {
		return false
	}
	items, ok := toSlice(v)
	if !ok {
		return false
	}
	for _, want := range m.Values {
		found := false
		for _, item := range items {
			if jsonutil.Equal(item, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m DeepEqual) match(v any, present bool) bool {
	return present && jsonutil.Equal(v, m.Value)
}

func (m Subset) match(v any, present bool) bool {
	obj, ok := toObject(v)
	if !present || !ok {
		return false
	}
	for k, want := range m.Fields {
		got, ok := obj[k]
		if !ok || !jsonutil.Equal(got, want) {
			return false
		}
	}
	return true
}

// ParseOptions tunes how Parse builds a query from untyped input.
type ParseOptions struct {
	CaseSensitive bool
	// Fields restricts text queries to these entry fields.
	Fields []string
	// ExactMatch compares every field of a structured query by deep
	// equality instead of by value shape.
	ExactMatch bool
}

// Parse maps loosely typed input, such as decoded JSON, to a Query. nil and
// "" select everything, other strings are text searches, objects are field
// queries, and anything else is Invalid.
func Parse(raw any, opts ParseOptions) Query {
	switch q := raw.(type) {
	case nil:
		return All{}
	case string:
		if q == "" {
			return All{}
		}
		return Text{Text: q, Fields: opts.Fields, CaseSensitive: opts.CaseSensitive}
	case Query:
		return q
	}

	obj, ok := toObject(raw)
	if !ok {
		return Invalid{Reason: fmt.Sprintf("unsupported query type %T", raw)}
	}
	matchers := make(map[string]Matcher, len(obj))
	for field, value := range obj {
		matchers[field] = matcherFor(value, opts)
	}
	return Fields{Matchers: matchers}
}

func matcherFor(value any, opts ParseOptions) Matcher {
	if value == nil {
		return Ignore{}
	}
	if opts.ExactMatch {
		return DeepEqual{Value: value}
	}
	switch kindOf(value) {
	case kindString:
		return Contains{Text: value.(string), CaseSensitive: opts.CaseSensitive}
	case kindBool, kindNumber:
		return Equals{Value: value}
	case kindArray:
		items, _ := toSlice(value)
		return ContainsAll{Values: items}
	case kindObject:
		obj, _ := toObject(value)
		return Subset{Fields: obj}
	}
	return DeepEqual{Value: value}
}

func containsText(s, sub string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(s, sub)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
	kindOther
)

func kindOf(v any) kind {
	switch v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindNumber
	case string:
		return kindString
	case []any, []string:
		return kindArray
	case map[string]any, model.Entry:
		return kindObject
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return kindArray
	case reflect.Map:
		return kindObject
	}
	return kindOther
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case model.Entry:
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
