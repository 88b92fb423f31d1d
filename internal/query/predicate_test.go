package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapRecord map[string]any

func (m mapRecord) Lookup(field string) (any, bool) {
	v, ok := m[field]
	return v, ok
}

type uidFilter struct {
	UID     string
	Content string
}

func (f uidFilter) Terms() []Term {
	var terms []Term
	terms = AppendString(terms, "uid", f.UID)
	terms = AppendString(terms, "content", f.Content)
	return terms
}

func TestBuild_TermPerPresentField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "empty", filter: uidFilter{}, want: 0},
		{name: "one field", filter: uidFilter{UID: "a"}, want: 1},
		{name: "two fields", filter: uidFilter{UID: "a", Content: "hi"}, want: 2},
		{name: "fields map skips nil", filter: Fields{"uid": "a", "content": nil}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, opts := range []Options{{}, {Condition: Or}, {ExcludeCondition: true}} {
				p := Build(tt.filter, opts)
				assert.Len(t, p.Terms, tt.want)
				assert.Empty(t, p.Clauses)
			}
		})
	}
}

func TestBuild_Operators(t *testing.T) {
	t.Parallel()

	f := uidFilter{UID: "a", Content: "hi"}
	assert.Equal(t, OpAll, Build(f, Options{}).Op)
	assert.Equal(t, OpAny, Build(f, Options{Condition: Or}).Op)
	assert.Equal(t, OpNone, Build(f, Options{ExcludeCondition: true}).Op)
	assert.Equal(t, OpNone, Build(f, Options{Condition: Or, ExcludeCondition: true}).Op)

	r := mapRecord{"uid": "a", "content": "other"}
	assert.False(t, Build(f, Options{}).Matches(r))
	assert.True(t, Build(f, Options{Condition: Or}).Matches(r))
	assert.False(t, Build(f, Options{ExcludeCondition: true}).Matches(r))
	assert.True(t, Build(uidFilter{UID: "z"}, Options{ExcludeCondition: true}).Matches(r))
}

func TestFields_SortedTerms(t *testing.T) {
	t.Parallel()

	terms := Fields{"username": "bob", "email": "bob@example.com"}.Terms()
	require.Len(t, terms, 2)
	assert.Equal(t, "email", terms[0].Field)
	assert.Equal(t, "username", terms[1].Field)
}

func TestBuildAny_EmptyListMatchesNothing(t *testing.T) {
	t.Parallel()

	for _, opts := range []Options{{}, {ExcludeCondition: true}, {Condition: Or}} {
		p := BuildAny([]uidFilter{}, opts)
		assert.True(t, p.IsNothing())
		assert.False(t, p.Matches(mapRecord{"uid": "a"}))
	}
}

func TestBuildAny_Clauses(t *testing.T) {
	t.Parallel()

	filters := []uidFilter{{UID: "a"}, {UID: "b", Content: "x"}}
	p := BuildAny(filters, Options{})
	assert.Equal(t, OpAny, p.Op)
	require.Len(t, p.Clauses, 2)
	assert.Equal(t, OpAll, p.Clauses[1].Op)
	assert.Len(t, p.Clauses[1].Terms, 2)

	assert.True(t, p.Matches(mapRecord{"uid": "a"}))
	assert.True(t, p.Matches(mapRecord{"uid": "b", "content": "x"}))
	assert.False(t, p.Matches(mapRecord{"uid": "b", "content": "y"}))
	assert.False(t, p.Matches(mapRecord{"uid": "c"}))
}

func TestBuildAny_ExcludeIsComplement(t *testing.T) {
	t.Parallel()

	sets := [][]uidFilter{
		{{UID: "a"}},
		{{UID: "a"}, {UID: "b"}},
		{{UID: "a", Content: "x"}, {Content: "y"}},
		{{}},
	}
	records := []mapRecord{
		{"uid": "a", "content": "x"},
		{"uid": "b", "content": "y"},
		{"uid": "c", "content": "x"},
		{"uid": "d"},
		{},
	}

	for i, set := range sets {
		include := BuildAny(set, Options{})
		exclude := BuildAny(set, Options{ExcludeCondition: true})
		for j, r := range records {
			t.Run(fmt.Sprintf("set%d/record%d", i, j), func(t *testing.T) {
				assert.Equal(t, !include.Matches(r), exclude.Matches(r))
			})
		}
	}
}

func TestPredicate_EmptyTermSemantics(t *testing.T) {
	t.Parallel()

	r := mapRecord{"uid": "a"}
	assert.True(t, All().Matches(r))
	assert.False(t, Predicate{Op: OpAny}.Matches(r))
	assert.True(t, Predicate{Op: OpNone}.Matches(r))
	assert.False(t, Nothing().Matches(r))
}

func TestPredicate_ArrayFieldMatchesElement(t *testing.T) {
	t.Parallel()

	r := mapRecord{"likes": []any{"u1", "u2"}}
	assert.True(t, Predicate{Op: OpAll, Terms: []Term{{Field: "likes", Value: "u2"}}}.Matches(r))
	assert.False(t, Predicate{Op: OpAll, Terms: []Term{{Field: "likes", Value: "u3"}}}.Matches(r))
}

func TestEqual(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, Equal(int32(3), int64(3)))
	assert.True(t, Equal(3, int32(3)))
	assert.True(t, Equal(now, now.In(time.FixedZone("x", 3600))))
	assert.False(t, Equal(now, now.Add(time.Millisecond)))
	assert.False(t, Equal("3", 3))
	assert.True(t, Equal("a", "a"))
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Equal(t, And, opts.Condition)
	assert.False(t, opts.ExcludeCondition)
	assert.False(t, opts.FindByID)
	assert.False(t, opts.Random)
	assert.Zero(t, opts.Skip)
	assert.Zero(t, opts.Limit)
	assert.Equal(t, 1, opts.SampleSize())
	assert.Equal(t, 9, Options{Limit: 9}.SampleSize())
}
