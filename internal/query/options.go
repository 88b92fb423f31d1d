package query

// Condition selects how the terms of a single filter are combined.
type Condition uint8

const (
	// And requires every term to match.
	And Condition = iota
	// Or requires at least one term to match.
	Or
)

func (c Condition) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// Options controls predicate construction and result shaping for a fetch.
// The zero value is the default: AND, no exclusion, ordered, unlimited.
type Options struct {
	Condition        Condition
	ExcludeCondition bool
	FindByID         bool
	Skip             int
	Limit            int
	// Random returns a uniform sample of Limit matches (1 when Limit is
	// unset). Skip is ignored.
	Random bool
}

// DefaultOptions returns the zero Options.
func DefaultOptions() Options {
	return Options{}
}

// SampleSize is the number of records a random fetch draws.
func (o Options) SampleSize() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return 1
}

// Build turns a single filter into a predicate: NOR over its terms when
// ExcludeCondition is set, otherwise AND or OR per Condition.
func Build(f Filter, opts Options) Predicate {
	terms := f.Terms()
	switch {
	case opts.ExcludeCondition:
		return Predicate{Op: OpNone, Terms: terms}
	case opts.Condition == Or:
		return Predicate{Op: OpAny, Terms: terms}
	default:
		return Predicate{Op: OpAll, Terms: terms}
	}
}

// BuildAny turns a list of alternative filters into a predicate. Each filter
// is an AND clause; the clauses are OR-ed, or NOR-ed when ExcludeCondition is
// set. Condition is ignored. An empty list matches nothing.
func BuildAny[F Filter](filters []F, opts Options) Predicate {
	if len(filters) == 0 {
		return Nothing()
	}

	clauses := make([]Predicate, 0, len(filters))
	for _, f := range filters {
		clauses = append(clauses, Predicate{Op: OpAll, Terms: f.Terms()})
	}

	op := OpAny
	if opts.ExcludeCondition {
		op = OpNone
	}
	return Predicate{Op: op, Clauses: clauses}
}
