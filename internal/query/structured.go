package query

import "fmt"

// FieldFilterInput is one caller-supplied structured predicate, prior
// to validation.
type FieldFilterInput struct {
	Field     string
	Condition string
	Value     string
}

// StructuredRequest is the caller-facing structured search request,
// before compilation into a Plan.
type StructuredRequest struct {
	Filters        []FieldFilterInput
	Labels         []string
	Tags           map[string]string
	MaxResults     int
	Skip           int
	Ordering       string
	IncludeContent bool
}

// CompileStructured validates req and produces a Plan. Unlike the
// SQL-subset parser it has no grammar to enforce; validation is limited
// to requiring a field path on each filter, recognizing the Condition
// and Ordering enum values, and clamping MaxResults and Skip.
func CompileStructured(req StructuredRequest) (*Plan, error) {
	ordering, err := orderingFromWire(req.Ordering)
	if err != nil {
		return nil, err
	}

	filters := make([]Filter, 0, len(req.Filters))
	for _, f := range req.Filters {
		if f.Field == "" {
			return nil, fmt.Errorf("query: filter missing field path")
		}
		cond, err := conditionFromWire(f.Condition)
		if err != nil {
			return nil, err
		}
		filters = append(filters, Filter{FieldPath: f.Field, Condition: cond, Value: f.Value})
	}

	skip := req.Skip
	if skip < 0 {
		skip = 0
	}

	return &Plan{
		Filters:        filters,
		Labels:         req.Labels,
		Tags:           req.Tags,
		Ordering:       ordering,
		MaxResults:     clampMaxResults(req.MaxResults),
		Skip:           skip,
		IncludeContent: req.IncludeContent,
	}, nil
}
