package recall_test

import (
	"context"
	"testing"

	"github.com/asecn/memcore/internal/recall"
	"github.com/asecn/memcore/pkg/model"
)

// FuzzTextRecall runs arbitrary text queries over a fixed store. Results
// must be a subset of the input and never exceed the limit.
func FuzzTextRecall(f *testing.F) {
	f.Add("alpha", false, 0)
	f.Add("ALPHA", true, 1)
	f.Add(`"source":"trigger"`, false, 5)
	f.Add("\x00", false, -1)
	f.Add("é", true, 2)

	entries := recall.Static{
		{"timestamp": "2024-02-19T00:00:00.000Z", "source": "trigger", "data": map[string]any{"msg": "alpha"}},
		{"timestamp": "2024-02-19T00:00:01.000Z", "source": "action", "tags": []any{"system"}},
		{"source": "no-time", "data": map[string]any{"msg": "café"}},
	}

	f.Fuzz(func(t *testing.T, text string, caseSensitive bool, limit int) {
		q := recall.Parse(text, recall.ParseOptions{CaseSensitive: caseSensitive})
		got, err := recall.Recall(context.Background(), entries, q, recall.Options{Limit: limit})
		if err != nil {
			t.Fatalf("recall %q: %v", text, err)
		}
		if got == nil {
			t.Fatalf("recall %q returned nil", text)
		}
		if len(got) > len(entries) {
			t.Fatalf("recall %q returned %d results", text, len(got))
		}
		if limit > 0 && len(got) > limit {
			t.Fatalf("limit %d exceeded: %d", limit, len(got))
		}
		for _, e := range got {
			if !contains(entries, e) {
				t.Fatalf("result %v is not a store entry", e)
			}
		}
	})
}

func contains(entries []model.Entry, e model.Entry) bool {
	for _, x := range entries {
		if x.Source() == e.Source() {
			return true
		}
	}
	return false
}
