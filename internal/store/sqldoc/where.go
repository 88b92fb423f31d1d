package sqldoc

import (
	"fmt"
	"strings"
	"time"

	"lumen/internal/query"
)

// column maps a document field to its SQL expression. "_id" and
// "created_at" are real columns; every other field is read from the body.
func column(field string) (string, error) {
	switch field {
	case "_id":
		return "id", nil
	case "created_at":
		return "created_at", nil
	}
	if !identPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return "body ->> '" + field + "'", nil
}

// whereClause renders p as a parenthesised SQL condition. Missing body
// fields compare as false rather than NULL, so NOT over a clause behaves as
// the in-memory evaluator does.
func whereClause(p query.Predicate) (string, []any, error) {
	var args []any
	sql, err := render(p, &args)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func render(p query.Predicate, args *[]any) (string, error) {
	if p.Op == query.OpNothing {
		return "1 = 0", nil
	}

	parts := make([]string, 0, len(p.Terms)+len(p.Clauses))
	for _, t := range p.Terms {
		col, err := column(t.Field)
		if err != nil {
			return "", err
		}
		if c, ok := t.Value.(query.Contains); ok {
			parts = append(parts, fmt.Sprintf(`(%s IS NOT NULL AND LOWER(%s) LIKE ? ESCAPE '\')`, col, col))
			*args = append(*args, "%"+likeEscaper.Replace(strings.ToLower(string(c)))+"%")
			continue
		}
		if col == "id" || col == "created_at" {
			parts = append(parts, col+" = ?")
			*args = append(*args, t.Value)
			continue
		}
		parts = append(parts, fmt.Sprintf("(%s IS NOT NULL AND %s = ?)", col, col))
		*args = append(*args, textValue(t.Value))
	}
	for _, c := range p.Clauses {
		sub, err := render(c, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sub)
	}

	switch p.Op {
	case query.OpAll:
		if len(parts) == 0 {
			return "1 = 1", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case query.OpAny:
		if len(parts) == 0 {
			return "1 = 0", nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case query.OpNone:
		if len(parts) == 0 {
			return "1 = 1", nil
		}
		return "NOT (" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "", fmt.Errorf("unsupported predicate op %v", p.Op)
	}
}

// likeEscaper quotes the LIKE wildcards of a literal pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// textValue renders v the way ->> renders a scalar JSON value.
func textValue(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
