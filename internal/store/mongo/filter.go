package mongo

import (
	"regexp"
	"sort"

	"lumen/internal/query"
	"lumen/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// matchNothing is a filter no document satisfies; every document has _id.
var matchNothing = bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}

// Filter translates p into a MongoDB query document. MongoDB rejects empty
// $and/$or/$nor arrays, so empty predicates become {} or matchNothing.
func Filter(p query.Predicate) bson.D {
	if p.Op == query.OpNothing {
		return matchNothing
	}

	parts := make(bson.A, 0, len(p.Terms)+len(p.Clauses))
	for _, t := range p.Terms {
		parts = append(parts, bson.D{{Key: t.Field, Value: termValue(t.Value)}})
	}
	for _, c := range p.Clauses {
		parts = append(parts, Filter(c))
	}

	switch p.Op {
	case query.OpAll:
		if len(parts) == 0 {
			return bson.D{}
		}
		return bson.D{{Key: "$and", Value: parts}}
	case query.OpAny:
		if len(parts) == 0 {
			return matchNothing
		}
		return bson.D{{Key: "$or", Value: parts}}
	case query.OpNone:
		if len(parts) == 0 {
			return bson.D{}
		}
		return bson.D{{Key: "$nor", Value: parts}}
	default:
		return matchNothing
	}
}

// termValue renders a term value as an equality operand. Contains becomes a
// case-insensitive $regex over the quoted text.
func termValue(v any) any {
	if c, ok := v.(query.Contains); ok {
		return bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(string(c))},
			{Key: "$options", Value: "i"},
		}
	}
	return v
}

// Sort is the sort document of page, or nil when page is unordered. Ties on
// the sort field are broken by _id in the same direction.
func Sort(page store.Page) bson.D {
	if page.SortField == "" {
		return nil
	}
	dir := 1
	if page.Descending {
		dir = -1
	}
	order := bson.D{{Key: page.SortField, Value: dir}}
	if page.SortField != "_id" {
		order = append(order, bson.E{Key: "_id", Value: dir})
	}
	return order
}

// SamplePipeline is the aggregation drawing n random matches of p.
func SamplePipeline(p query.Predicate, n int) bson.A {
	return bson.A{
		bson.D{{Key: "$match", Value: Filter(p)}},
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: n}}}},
	}
}

// PatchUpdate translates patch into an update document with $set/$unset.
func PatchUpdate(patch store.Patch) bson.D {
	var update bson.D
	if len(patch.Set) > 0 {
		keys := make([]string, 0, len(patch.Set))
		for k := range patch.Set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		set := make(bson.D, 0, len(keys))
		for _, k := range keys {
			set = append(set, bson.E{Key: k, Value: patch.Set[k]})
		}
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(patch.Unset) > 0 {
		unset := make(bson.D, 0, len(patch.Unset))
		for _, k := range patch.Unset {
			unset = append(unset, bson.E{Key: k, Value: ""})
		}
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}
