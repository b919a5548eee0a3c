package store

import (
	"fmt"

	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/model"
)

// emptyStore is the serialized form of a store with no entries.
var emptyStore = []byte("[]")

// Decode parses store content. It fails unless data is a JSON array whose
// elements are all objects.
func Decode(data []byte) ([]model.Entry, error) {
	v, err := jsonutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse store: %w", err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("store content is not an array")
	}
	entries := make([]model.Entry, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("store element %d is not an object", i)
		}
		entries = append(entries, model.Entry(obj))
	}
	return entries, nil
}

// Encode renders entries in the pretty-printed on-disk layout.
func Encode(entries []model.Entry) ([]byte, error) {
	if len(entries) == 0 {
		return append([]byte(nil), emptyStore...), nil
	}
	data, err := jsonutil.MarshalIndent(entries)
	if err != nil {
		return nil, fmt.Errorf("encode store: %w", err)
	}
	return data, nil
}
