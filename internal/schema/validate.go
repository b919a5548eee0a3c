package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/asecn/memcore/pkg/jsonutil"
	"github.com/asecn/memcore/pkg/model"
)

// Validator validates values against one schema, caching compiled patterns.
type Validator struct {
	schema   *Schema
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New returns a Validator for s.
func New(s *Schema) *Validator {
	return &Validator{schema: s, patterns: make(map[string]*regexp.Regexp)}
}

// Validate checks value against s.
func Validate(value any, s *Schema) Result {
	return New(s).Validate(value)
}

// Validate checks value against the validator's schema. It never fails
// itself; every violation is reported in the result.
func (v *Validator) Validate(value any) Result {
	if v.schema == nil {
		return Result{OK: true}
	}
	var errs []string
	v.validateObject(value, v.schema, "", &errs)
	if len(errs) > 0 {
		return Result{OK: false, Errors: errs}
	}
	return Result{OK: true}
}

func (v *Validator) validateObject(value any, s *Schema, prefix string, errs *[]string) {
	obj, _ := asObject(value)

	for _, field := range s.Required {
		if _, ok := obj[field]; !ok {
			*errs = append(*errs, "Missing required field: "+prefix+field)
		}
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := s.Properties[name]
		val, ok := obj[name]
		if !ok || def == nil {
			continue
		}
		v.validateValue(val, def, prefix+name, errs)
	}
}

func (v *Validator) validateValue(val any, def *Schema, path string, errs *[]string) {
	if def.Type != "" && !CheckType(val, def.Type) {
		*errs = append(*errs, fmt.Sprintf("Invalid type for %s: expected %s", path, def.Type))
	}

	if def.Format != "" && !CheckFormat(val, def.Format) {
		*errs = append(*errs, fmt.Sprintf("Invalid format for %s: expected %s", path, def.Format))
	}

	if def.Type == TypeNumber || def.Type == TypeInteger {
		if n, ok := asNumber(val); ok {
			if def.Minimum != nil && n < *def.Minimum {
				*errs = append(*errs, fmt.Sprintf("%s must be at least %s", path, formatFloat(*def.Minimum)))
			}
			if def.Maximum != nil && n > *def.Maximum {
				*errs = append(*errs, fmt.Sprintf("%s must be at most %s", path, formatFloat(*def.Maximum)))
			}
		}
	}

	if def.Type == TypeString || def.Type == TypeArray {
		if n, ok := length(val); ok {
			if def.MinLength != nil && n < *def.MinLength {
				*errs = append(*errs, fmt.Sprintf("%s must have at least %d items/characters", path, *def.MinLength))
			}
			if def.MaxLength != nil && n > *def.MaxLength {
				*errs = append(*errs, fmt.Sprintf("%s must have at most %d items/characters", path, *def.MaxLength))
			}
		}
	}

	if def.Type == TypeString && def.Pattern != "" {
		re, err := v.pattern(def.Pattern)
		switch {
		case err != nil:
			*errs = append(*errs, fmt.Sprintf("%s has an invalid pattern: %v", path, err))
		case !re.MatchString(fmt.Sprint(val)):
			*errs = append(*errs, fmt.Sprintf("%s does not match required pattern", path))
		}
	}

	if len(def.Enum) > 0 && !inEnum(val, def.Enum) {
		opts := make([]string, len(def.Enum))
		for i, e := range def.Enum {
			opts[i] = fmt.Sprint(e)
		}
		*errs = append(*errs, fmt.Sprintf("%s must be one of: %s", path, strings.Join(opts, ", ")))
	}

	if def.Type == TypeObject && def.Properties != nil {
		v.validateObject(val, def, path+".", errs)
	}

	if def.Type == TypeArray && def.Items != nil {
		items, ok := asArray(val)
		if !ok {
			return
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if def.Items.Type == TypeObject && def.Items.Properties != nil {
				v.validateObject(item, def.Items, itemPath+".", errs)
				continue
			}
			if def.Items.Type != "" && !CheckType(item, def.Items.Type) {
				*errs = append(*errs, fmt.Sprintf("Invalid type for item in %s at index %d: expected %s", path, i, def.Items.Type))
			}
		}
	}
}

func (v *Validator) pattern(expr string) (*regexp.Regexp, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if re, ok := v.patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	v.patterns[expr] = re
	return re, nil
}

// CheckType reports whether value has the named type. Unknown types accept
// every value.
func CheckType(value any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		n, ok := asNumber(value)
		return ok && !math.IsNaN(n)
	case TypeInteger:
		return isInteger(value)
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := asArray(value)
		return ok
	case TypeObject:
		_, ok := asObject(value)
		return ok
	case TypeNull:
		return value == nil
	default:
		return true
	}
}

func asObject(value any) (map[string]any, bool) {
	switch o := value.(type) {
	case map[string]any:
		return o, o != nil
	case model.Entry:
		return o, o != nil
	}
	return nil, false
}

func asArray(value any) ([]any, bool) {
	switch a := value.(type) {
	case []any:
		return a, true
	case []string:
		out := make([]any, len(a))
		for i, s := range a {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func isInteger(value any) bool {
	if n, ok := value.(json.Number); ok {
		if _, err := n.Int64(); err == nil {
			return true
		}
	}
	f, ok := asNumber(value)
	return ok && !math.IsInf(f, 0) && f == math.Trunc(f)
}

func length(value any) (int, bool) {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	if a, ok := asArray(value); ok {
		return len(a), true
	}
	return 0, false
}

func inEnum(value any, enum []any) bool {
	for _, e := range enum {
		if jsonutil.Equal(value, e) {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
