// Package query implements the query planner: a hand-written
// recursive-descent parser for the restricted SQL subset, and a
// compiler for structured filter lists, both producing a
// common Plan that the caller executes against the index-table manager
// and the label/tag pre-filter.
package query

import "fmt"

// Condition is one of SearchCondition's wire values.
type Condition string

const (
	Equals               Condition = "Equals"
	NotEquals            Condition = "NotEquals"
	GreaterThan          Condition = "GreaterThan"
	GreaterThanOrEqualTo Condition = "GreaterThanOrEqualTo"
	LessThan             Condition = "LessThan"
	LessThanOrEqualTo    Condition = "LessThanOrEqualTo"
	IsNull               Condition = "IsNull"
	IsNotNull            Condition = "IsNotNull"
	Contains             Condition = "Contains"
	StartsWith           Condition = "StartsWith"
	EndsWith             Condition = "EndsWith"
	Like                 Condition = "Like"
)

// sqlConditions is the subset of Condition the SQL grammar can
// express: CONTAINS/STARTSWITH/ENDSWITH are structured-filter only,
// there is no SQL spelling for them.
var sqlConditions = map[string]Condition{
	"=":    Equals,
	"!=":   NotEquals,
	"<>":   NotEquals,
	"<":    LessThan,
	"<=":   LessThanOrEqualTo,
	">":    GreaterThan,
	">=":   GreaterThanOrEqualTo,
	"LIKE": Like,
}

// Ordering is one of EnumerationOrder's wire values.
type Ordering string

const (
	CreatedAscending     Ordering = "CreatedAscending"
	CreatedDescending    Ordering = "CreatedDescending"
	LastUpdateAscending  Ordering = "LastUpdateAscending"
	LastUpdateDescending Ordering = "LastUpdateDescending"
	NameAscending        Ordering = "NameAscending"
	NameDescending       Ordering = "NameDescending"
)

// orderableColumns are the only documents-table columns ORDER BY (SQL
// subset) or Ordering (structured) may reference; field-index columns
// are not sortable because cross-table index values are never joined
// back into one ordered stream.
var orderableColumns = map[string]struct {
	asc, desc Ordering
}{
	"created_utc":     {CreatedAscending, CreatedDescending},
	"last_update_utc": {LastUpdateAscending, LastUpdateDescending},
	"name":            {NameAscending, NameDescending},
}

// Filter is one predicate against a single field's index table.
type Filter struct {
	FieldPath string
	Condition Condition
	Value     string
}

// Plan is the planner-agnostic intermediate representation both the
// SQL-subset parser and the structured-filter compiler produce.
type Plan struct {
	Filters        []Filter
	Labels         []string
	Tags           map[string]string
	Ordering       Ordering
	MaxResults     int
	Skip           int
	IncludeContent bool
}

// MaxResultsCap is the hard ceiling on a result page;
// CompileStructured and ParseSQL both clamp to it.
const MaxResultsCap = 1000

// clampMaxResults applies the default-then-cap rule shared by both
// entry points: zero or negative means "use the cap", anything above
// the cap is clamped down to it.
func clampMaxResults(n int) int {
	if n <= 0 || n > MaxResultsCap {
		return MaxResultsCap
	}
	return n
}

func conditionFromWire(s string) (Condition, error) {
	switch Condition(s) {
	case Equals, NotEquals, GreaterThan, GreaterThanOrEqualTo, LessThan, LessThanOrEqualTo,
		IsNull, IsNotNull, Contains, StartsWith, EndsWith, Like:
		return Condition(s), nil
	default:
		return "", fmt.Errorf("query: unknown condition %q", s)
	}
}

func orderingFromWire(s string) (Ordering, error) {
	if s == "" {
		return CreatedAscending, nil
	}
	switch Ordering(s) {
	case CreatedAscending, CreatedDescending, LastUpdateAscending, LastUpdateDescending, NameAscending, NameDescending:
		return Ordering(s), nil
	default:
		return "", fmt.Errorf("query: unknown ordering %q", s)
	}
}
