package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DecodeDocument parses a stored JSON object. Numbers are kept as json.Number
// so integer fields survive a round trip exactly.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode document: not an object")
	}
	return doc, nil
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Matches reports whether doc satisfies every condition in filter. Values are
// compared by their JSON encoding, so 120, int64(120) and json.Number("120")
// are equal.
func Matches(doc Document, filter Filter) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if !ok {
			return false
		}
		if set, isIn := want.(In); isIn {
			if !containsValue(set, got) {
				return false
			}
			continue
		}
		if !EqualValues(got, want) {
			return false
		}
	}
	return true
}

func containsValue(set In, v any) bool {
	for _, candidate := range set {
		if EqualValues(candidate, v) {
			return true
		}
	}
	return false
}

// EqualValues compares two document values by their JSON encoding.
func EqualValues(a, b any) bool {
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// ValueKey returns a comparable key for v, used to de-duplicate Distinct
// results.
func ValueKey(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}

// ApplyUpdate modifies doc in place and reports whether anything changed.
// Inc on a non-integer field is an error and leaves doc untouched.
func ApplyUpdate(doc Document, u Update) (bool, error) {
	next := make(map[string]int64, len(u.Inc))
	for field, delta := range u.Inc {
		cur := int64(0)
		if v, ok := doc[field]; ok && v != nil {
			n, isInt := Int64(v)
			if !isInt {
				return false, fmt.Errorf("cannot increment non-integer field %q", field)
			}
			cur = n
		}
		next[field] = cur + delta
	}

	changed := false
	for field, v := range u.Set {
		if old, ok := doc[field]; !ok || !EqualValues(old, v) {
			changed = true
		}
		doc[field] = v
	}
	for field, v := range next {
		if u.Inc[field] != 0 {
			changed = true
		}
		doc[field] = v
	}
	return changed, nil
}

// SeedDocument builds the document inserted by an Upsert that matched
// nothing: doc, plus the filter's equality fields, plus the increments
// applied to zero.
func SeedDocument(filter Filter, inc map[string]int64, doc Document) (Document, error) {
	out := doc.Clone()
	for field, v := range filter {
		if _, isIn := v.(In); isIn {
			continue
		}
		out[field] = v
	}
	for field, delta := range inc {
		out[field] = delta
	}
	if out.ID() == "" {
		return nil, fmt.Errorf("upsert document has no %q", IDField)
	}
	return out, nil
}

// Int64 converts a decoded document value to an integer.
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
