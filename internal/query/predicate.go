// Package query builds store-agnostic predicates from typed filters.
package query

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Op selects how a predicate combines its terms and clauses.
type Op uint8

const (
	// OpAll matches when every term and clause matches (AND).
	OpAll Op = iota
	// OpAny matches when at least one term or clause matches (OR).
	OpAny
	// OpNone matches when no term or clause matches (NOR).
	OpNone
	// OpNothing never matches.
	OpNothing
)

func (o Op) String() string {
	switch o {
	case OpAll:
		return "and"
	case OpAny:
		return "or"
	case OpNone:
		return "nor"
	case OpNothing:
		return "nothing"
	default:
		return "unknown"
	}
}

// Term is a single field-equality constraint.
type Term struct {
	Field string
	Value any
}

// Predicate is a boolean condition over record fields.
//
// An OpAll predicate with no terms matches every record, an OpAny predicate
// with no terms matches none, and an OpNone predicate with no terms matches
// every record.
type Predicate struct {
	Op      Op
	Terms   []Term
	Clauses []Predicate
}

// All returns a predicate matching every record.
func All() Predicate {
	return Predicate{Op: OpAll}
}

// Nothing returns a predicate that matches no record.
func Nothing() Predicate {
	return Predicate{Op: OpNothing}
}

// IsNothing reports whether p can never match.
func (p Predicate) IsNothing() bool {
	return p.Op == OpNothing
}

// Record exposes the fields of a stored document to Matches.
type Record interface {
	Lookup(field string) (any, bool)
}

// Matches evaluates p against r.
func (p Predicate) Matches(r Record) bool {
	switch p.Op {
	case OpNothing:
		return false
	case OpAll:
		for _, t := range p.Terms {
			if !termMatches(t, r) {
				return false
			}
		}
		for _, c := range p.Clauses {
			if !c.Matches(r) {
				return false
			}
		}
		return true
	case OpAny, OpNone:
		hit := false
		for _, t := range p.Terms {
			if termMatches(t, r) {
				hit = true
				break
			}
		}
		if !hit {
			for _, c := range p.Clauses {
				if c.Matches(r) {
					hit = true
					break
				}
			}
		}
		if p.Op == OpNone {
			return !hit
		}
		return hit
	default:
		return false
	}
}

// Contains as a term value matches string fields that contain it as a
// substring, ignoring case. It is never equal to a stored value.
type Contains string

// Matches reports whether v is a string containing c, ignoring case.
func (c Contains) Matches(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(strings.ToLower(s), strings.ToLower(string(c)))
}

// termMatches follows document-store equality: a term against an array field
// matches when any element is equal to the term value.
func termMatches(t Term, r Record) bool {
	v, ok := r.Lookup(t.Field)
	if !ok {
		return t.Value == nil
	}
	if arr, isArr := v.([]any); isArr {
		for _, el := range arr {
			if valueMatches(el, t.Value) {
				return true
			}
		}
		return false
	}
	return valueMatches(v, t.Value)
}

func valueMatches(v, want any) bool {
	if c, ok := want.(Contains); ok {
		return c.Matches(v)
	}
	return Equal(v, want)
}

// Equal compares two scalar field values. Integers compare by value across
// widths and times compare by instant.
func Equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ia, ok := asInt(a); ok {
		if ib, ok := asInt(b); ok {
			return ia == ib
		}
	}
	return reflect.DeepEqual(a, b)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// Filter is a typed partial entity: it yields one term per present field.
type Filter interface {
	Terms() []Term
}

// Fields is an ad-hoc filter keyed by field name. Nil values are absent.
type Fields map[string]any

// Terms returns the non-nil entries in key order.
func (f Fields) Terms() []Term {
	keys := make([]string, 0, len(f))
	for k, v := range f {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	terms := make([]Term, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, Term{Field: k, Value: f[k]})
	}
	return terms
}

// AppendString appends a term for value unless it is empty.
func AppendString(terms []Term, field, value string) []Term {
	if value == "" {
		return terms
	}
	return append(terms, Term{Field: field, Value: value})
}
