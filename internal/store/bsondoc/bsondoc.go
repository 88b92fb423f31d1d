// Package bsondoc converts typed documents to and from generic BSON maps and
// applies collection mutations to them. The in-memory and SQL stores keep
// documents in this form.
package bsondoc

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"lumen/internal/query"
	"lumen/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// FromStruct encodes v through its bson tags into a map.
func FromStruct(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return decode(raw)
}

// ToStruct decodes doc into out.
func ToStruct(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Normalize returns v in the representation a decoded document would hold.
func Normalize(v any) (any, error) {
	doc, err := FromStruct(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

// MarshalExtJSON renders doc as relaxed extended JSON.
func MarshalExtJSON(doc bson.M) ([]byte, error) {
	return bson.MarshalExtJSON(doc, false, false)
}

// UnmarshalExtJSON parses relaxed or canonical extended JSON into a map.
func UnmarshalExtJSON(data []byte) (bson.M, error) {
	var loose bson.M
	if err := bson.UnmarshalExtJSON(data, false, &loose); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	raw, err := bson.Marshal(loose)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) (bson.M, error) {
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.DefaultDocumentM()
	var doc bson.M
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// ID returns the document's "_id" when it is a non-empty string.
func ID(doc bson.M) (string, bool) {
	id, ok := doc["_id"].(string)
	return id, ok && id != ""
}

// CreatedAt returns the document's "created_at" time.
func CreatedAt(doc bson.M) (time.Time, bool) {
	switch v := doc["created_at"].(type) {
	case bson.DateTime:
		return v.Time().UTC(), true
	case time.Time:
		return v.UTC(), true
	default:
		return time.Time{}, false
	}
}

type record bson.M

// Record exposes doc to query.Predicate.Matches.
func Record(doc bson.M) query.Record {
	return record(doc)
}

func (r record) Lookup(field string) (any, bool) {
	v, ok := r[field]
	if !ok {
		return nil, false
	}
	return plain(v), true
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.A:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = plain(el)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = plain(el)
		}
		return out
	default:
		return v
	}
}

// ApplyPatch sets and unsets top-level fields of doc. The "_id" field is
// immutable.
func ApplyPatch(doc bson.M, patch store.Patch) error {
	for field, value := range patch.Set {
		if field == "_id" {
			return fmt.Errorf("field %q is immutable", field)
		}
		norm, err := Normalize(value)
		if err != nil {
			return err
		}
		doc[field] = norm
	}
	for _, field := range patch.Unset {
		if field == "_id" {
			return fmt.Errorf("field %q is immutable", field)
		}
		delete(doc, field)
	}
	return nil
}

func array(doc bson.M, field string) ([]any, error) {
	switch v := doc[field].(type) {
	case nil:
		return nil, nil
	case bson.A:
		return []any(v), nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("field %q is not an array", field)
	}
}

// AddToSet appends value to the array field unless an equal element exists.
func AddToSet(doc bson.M, field string, value any) error {
	arr, err := array(doc, field)
	if err != nil {
		return err
	}
	norm, err := Normalize(value)
	if err != nil {
		return err
	}
	for _, el := range arr {
		if reflect.DeepEqual(el, norm) {
			return nil
		}
	}
	doc[field] = append(bson.A(arr), norm)
	return nil
}

// Push appends value to the array field.
func Push(doc bson.M, field string, value any) error {
	arr, err := array(doc, field)
	if err != nil {
		return err
	}
	norm, err := Normalize(value)
	if err != nil {
		return err
	}
	doc[field] = append(bson.A(arr), norm)
	return nil
}

// Pull removes every element equal to value from the array field.
func Pull(doc bson.M, field string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}
	return filterArray(doc, field, func(el any) bool {
		return reflect.DeepEqual(el, norm)
	})
}

// PullWhere removes every embedded document whose match.Field equals
// match.Value.
func PullWhere(doc bson.M, field string, match query.Term) error {
	norm, err := Normalize(match.Value)
	if err != nil {
		return err
	}
	return filterArray(doc, field, func(el any) bool {
		sub, ok := el.(bson.M)
		if !ok {
			return false
		}
		return reflect.DeepEqual(sub[match.Field], norm)
	})
}

func filterArray(doc bson.M, field string, drop func(any) bool) error {
	arr, err := array(doc, field)
	if err != nil {
		return err
	}
	if arr == nil {
		return nil
	}
	kept := make(bson.A, 0, len(arr))
	for _, el := range arr {
		if !drop(el) {
			kept = append(kept, el)
		}
	}
	doc[field] = kept
	return nil
}

// Compare orders two field values. Missing values sort first.
func Compare(a, b any) int {
	a, b = plain(a), plain(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
