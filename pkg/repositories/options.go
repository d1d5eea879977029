package repositories

import (
	"fmt"
	"strings"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
	"github.com/attractor-labs/discovery-engine/pkg/models"
)

// Op is the closed set of filter predicates the generic listing path
// supports. Anything richer (OR, joins, aggregation) belongs in a domain
// repository as a hand-written query.
type Op string

const (
	OpEquals   Op = "eq"       // column = value
	OpIn       Op = "in"       // column = ANY(values)
	OpAtLeast  Op = "gte"      // column >= value
	OpAtMost   Op = "lte"      // column <= value
	OpOverlaps Op = "overlaps" // array column && values
)

// Filter is one predicate against a declared schema column. All filters in a
// ListOptions are ANDed.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Equals builds an exact-match filter.
func Equals(column string, value any) Filter {
	return Filter{Column: column, Op: OpEquals, Value: value}
}

// In builds a multi-value equality filter.
func In(column string, values any) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// AtLeast builds a lower-bound filter (inclusive).
func AtLeast(column string, value any) Filter {
	return Filter{Column: column, Op: OpAtLeast, Value: value}
}

// AtMost builds an upper-bound filter (inclusive).
func AtMost(column string, value any) Filter {
	return Filter{Column: column, Op: OpAtMost, Value: value}
}

// Overlaps builds an array-overlap filter.
func Overlaps(column string, values any) Filter {
	return Filter{Column: column, Op: OpOverlaps, Value: values}
}

// DefaultLimit caps listing and search results when the caller does not set
// an explicit limit.
const DefaultLimit = 50

// ListOptions is the declarative bag for FindAll/Count/Paginate. Zero value
// means: no filters, created_at descending, limit 50, offset 0.
type ListOptions struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Pagination is the page envelope metadata returned by Paginate.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// Page combines one page of entities with its pagination envelope.
type Page[PT any] struct {
	Data       []PT       `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// whereClause renders ANDed predicates into a WHERE fragment with
// positionally bound values. Column names are checked against the schema
// before they are interpolated; values are never interpolated.
func whereClause(schema models.Schema, filters []Filter, firstArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conditions := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	arg := firstArg
	for _, f := range filters {
		if !schema.HasColumn(f.Column) {
			return "", nil, fmt.Errorf("%s filter %q: %w", schema.Entity, f.Column, apperrors.ErrUnknownColumn)
		}
		switch f.Op {
		case OpEquals:
			conditions = append(conditions, fmt.Sprintf("%s = $%d", f.Column, arg))
		case OpIn:
			conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", f.Column, arg))
		case OpAtLeast:
			conditions = append(conditions, fmt.Sprintf("%s >= $%d", f.Column, arg))
		case OpAtMost:
			conditions = append(conditions, fmt.Sprintf("%s <= $%d", f.Column, arg))
		case OpOverlaps:
			conditions = append(conditions, fmt.Sprintf("%s && $%d", f.Column, arg))
		default:
			return "", nil, fmt.Errorf("%s filter %q: unsupported op %q", schema.Entity, f.Column, f.Op)
		}
		args = append(args, f.Value)
		arg++
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// orderClause renders the ORDER BY fragment. Defaults to creation time,
// newest first.
func orderClause(schema models.Schema, opts ListOptions) (string, error) {
	column := opts.OrderBy
	descending := opts.Descending
	if column == "" {
		column = "created_at"
		descending = true
	}
	if !schema.HasColumn(column) {
		return "", fmt.Errorf("%s order by %q: %w", schema.Entity, column, apperrors.ErrUnknownColumn)
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, direction), nil
}
