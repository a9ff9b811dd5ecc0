package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// RECORD - Loosely shaped input row
// =============================================================================

// Record is one row as it arrives from a form, an export or the API. Field
// names vary between sources; lookups go through alias lists and ignore
// case, spaces, hyphens and underscores.
type Record map[string]any

func normalizeKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lookup returns the first alias present with a non-empty value.
func (r Record) lookup(aliases ...string) (any, string, bool) {
	if len(r) == 0 {
		return nil, "", false
	}
	byKey := make(map[string]string, len(r))
	for k := range r {
		byKey[normalizeKey(k)] = k
	}
	for _, alias := range aliases {
		k, ok := byKey[normalizeKey(alias)]
		if !ok {
			continue
		}
		v := r[k]
		if isEmpty(v) {
			continue
		}
		return v, k, true
	}
	return nil, "", false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// String returns the first alias present, as trimmed text.
func (r Record) String(aliases ...string) string {
	v, _, ok := r.lookup(aliases...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Decimal reads a number. Present is false when no alias carries a value.
func (r Record) Decimal(aliases ...string) (d decimal.Decimal, present bool, err error) {
	v, _, ok := r.lookup(aliases...)
	if !ok {
		return decimal.Zero, false, nil
	}
	d, err = toDecimal(v)
	return d, true, err
}

// Int reads a whole number, truncating any fraction.
func (r Record) Int(aliases ...string) (int, bool, error) {
	d, ok, err := r.Decimal(aliases...)
	if !ok || err != nil {
		return 0, ok, err
	}
	return int(d.IntPart()), true, nil
}

// Date walks the aliases in priority order and returns the first value that
// resolves to a calendar date.
func (r Record) Date(aliases ...string) progress.Date {
	for _, alias := range aliases {
		if v, _, ok := r.lookup(alias); ok {
			if d := progress.ResolveDate(v); !d.IsZero() {
				return d
			}
		}
	}
	return progress.Date{}
}

// Raw returns the raw text of every alias present, in priority order.
func (r Record) Raw(aliases ...string) []string {
	var out []string
	for _, alias := range aliases {
		if s := r.String(alias); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number: %v", t)
		}
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		s = strings.ReplaceAll(s, " ", "")
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported number type %T", v)
	}
}
