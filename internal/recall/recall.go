// Package recall searches, filters, sorts and limits store entries.
package recall

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/logging"
	"github.com/asecn/memcore/pkg/metrics"
	"github.com/asecn/memcore/pkg/model"
)

const logSource = "memory-core"

// DefaultSortBy is the field results are ordered by unless told otherwise.
const DefaultSortBy = model.FieldTimestamp

// Source supplies a fresh snapshot of entries for each recall.
type Source interface {
	Entries(ctx context.Context) ([]model.Entry, error)
}

// Static is a fixed Source.
type Static []model.Entry

// Entries implements Source.
func (s Static) Entries(context.Context) ([]model.Entry, error) {
	return s, nil
}

// Options controls ordering and truncation of results.
type Options struct {
	// SortBy names the ordering field. Empty means DefaultSortBy.
	SortBy string
	// Ascending reverses the default newest-first order.
	Ascending bool
	// Unsorted keeps insertion order and ignores SortBy.
	Unsorted bool
	// Limit caps the result count when positive.
	Limit int
}

// Engine runs queries against a Source.
type Engine struct {
	log     logging.Sink
	metrics *metrics.Registry
}

// New returns an engine that logs to log and records into m. Both may be nil.
func New(log logging.Sink, m *metrics.Registry) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{log: log, metrics: m}
}

// Recall runs q with a default engine.
func Recall(ctx context.Context, src Source, q Query, opts Options) ([]model.Entry, error) {
	return New(nil, nil).Recall(ctx, src, q, opts)
}

// Recall returns the entries of src matching q, sorted and limited per opts.
// An Invalid query returns no entries and no error.
func (e *Engine) Recall(ctx context.Context, src Source, q Query, opts Options) ([]model.Entry, error) {
	start := time.Now()
	results, err := e.recall(ctx, src, q, opts)
	e.metrics.Observe(metrics.OpRecall, err, time.Since(start))
	if err != nil {
		e.log.Log(logging.LevelError, logSource, "Error in memory recall", nil, err)
		return nil, err
	}
	e.metrics.RecordRecall(len(results))
	return results, nil
}

func (e *Engine) recall(ctx context.Context, src Source, q Query, opts Options) ([]model.Entry, error) {
	if q == nil {
		q = All{}
	}
	if inv, ok := q.(Invalid); ok {
		e.log.Log(logging.LevelWarn, logSource, fmt.Sprintf("Invalid recall query: %s", inv.Reason), nil, nil)
		return []model.Entry{}, nil
	}

	entries, err := src.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var results []model.Entry
	switch q := q.(type) {
	case All:
		e.log.Log(logging.LevelDebug, logSource, "Recalling all memory entries", nil, nil)
		results = append([]model.Entry(nil), entries...)
	case Text:
		results, err = filter(entries, func(entry model.Entry) (bool, error) { return q.matches(entry) })
		if err != nil {
			return nil, err
		}
		e.log.Log(logging.LevelDebug, logSource,
			fmt.Sprintf("Text search for %q returned %d results", q.Text, len(results)), nil, nil)
	case Fields:
		results, _ = filter(entries, func(entry model.Entry) (bool, error) { return q.matches(entry), nil })
		e.log.Log(logging.LevelDebug, logSource,
			fmt.Sprintf("Object query returned %d results", len(results)), nil, nil)
	default:
		return nil, fmt.Errorf("unknown query type %T", q)
	}

	if !opts.Unsorted {
		sortBy := opts.SortBy
		if sortBy == "" {
			sortBy = DefaultSortBy
		}
		Sort(results, sortBy, !opts.Ascending)
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	if results == nil {
		results = []model.Entry{}
	}
	return results, nil
}

func filter(entries []model.Entry, keep func(model.Entry) (bool, error)) ([]model.Entry, error) {
	var out []model.Entry
	for _, entry := range entries {
		ok, err := keep(entry)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (q Text) matches(entry model.Entry) (bool, error) {
	if len(q.Fields) > 0 {
		for _, field := range q.Fields {
			if s, ok := entry[field].(string); ok && containsText(s, q.Text, q.CaseSensitive) {
				return true, nil
			}
		}
		return false, nil
	}
	encoded, err := jsonutil.CanonicalMarshal(map[string]any(entry))
	if err != nil {
		return false, fmt.Errorf("encode entry for search: %w", err)
	}
	return containsText(string(encoded), q.Text, q.CaseSensitive), nil
}

func (q Fields) matches(entry model.Entry) bool {
	for field, m := range q.Matchers {
		v, present := entry[field]
		if !m.match(v, present) {
			return false
		}
	}
	return true
}

// Sort orders entries in place by field. Entries lacking the field go last
// in either direction. Equal values keep their relative order.
func Sort(entries []model.Entry, field string, desc bool) {
	col := collate.New(language.Und)
	sort.SliceStable(entries, func(i, j int) bool {
		a, aok := entries[i][field]
		b, bok := entries[j][field]
		switch {
		case !aok && !bok:
			return false
		case !aok:
			return false
		case !bok:
			return true
		}
		c := compareValues(col, a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders two present values: strings by collation, numbers
// numerically, false before true, mixed kinds by kind, and composites by
// their canonical JSON.
func compareValues(col *collate.Collator, a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return int(ka) - int(kb)
	}
	switch ka {
	case kindNull:
		return 0
	case kindString:
		return col.CompareString(a.(string), b.(string))
	case kindBool:
		return compareBool(a.(bool), b.(bool))
	case kindNumber:
		fa, okA := toBigFloat(a)
		fb, okB := toBigFloat(b)
		if okA && okB {
			return fa.Cmp(fb)
		}
	}
	ca, errA := jsonutil.CanonicalMarshal(a)
	cb, errB := jsonutil.CanonicalMarshal(b)
	if errA != nil || errB != nil {
		return 0
	}
	return bytes.Compare(ca, cb)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func toBigFloat(v any) (*big.Float, bool) {
	s := strings.TrimSpace(fmt.Sprint(v))
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, false
	}
	return f, true
}
