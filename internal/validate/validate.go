// Package validate implements the schema-constraint validator:
// four enforcement modes applied over a
// collection's declared FieldConstraint whitelist and a document's
// flattened entries.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docvault-db/docvault/internal/flatten"
)

// Mode is one of the four enforcement modes.
type Mode string

const (
	ModeNone     Mode = "None"
	ModeStrict   Mode = "Strict"
	ModeFlexible Mode = "Flexible"
	ModePartial  Mode = "Partial"
)

// Constraint is one declared rule against a field path.
type Constraint struct {
	FieldPath        string
	DataType         flatten.DataType
	Required         bool
	Nullable         bool
	RegexPattern     string
	MinValue         *float64
	MaxValue         *float64
	MinLength        *int
	MaxLength        *int
	AllowedValues    []string
	ArrayElementType flatten.DataType
	HasArrayElemType bool
}

// Result is the outcome of running Validate.
type Result struct {
	Accepted bool
	// Errors is populated on Strict or Partial rejection.
	Errors []string
	// Warnings is populated on Flexible mode when checks would have
	// failed under Strict.
	Warnings []string
}

// Validate runs every constraint against entries under mode and returns
// a Result. It never mutates entries or constraints.
func Validate(mode Mode, constraints []Constraint, entries flatten.Entries) Result {
	if mode == ModeNone {
		return Result{Accepted: true}
	}

	byPath := groupByPath(entries)
	var failures []string

	for _, c := range constraints {
		occurrences, present := byPath[c.FieldPath]

		if mode == ModePartial && !present {
			continue
		}

		failures = append(failures, checkConstraint(c, occurrences, present)...)
	}

	if len(failures) == 0 {
		return Result{Accepted: true}
	}

	switch mode {
	case ModeFlexible:
		return Result{Accepted: true, Warnings: failures}
	default: // Strict, Partial
		return Result{Accepted: false, Errors: failures}
	}
}

func groupByPath(entries flatten.Entries) map[string][]flatten.Entry {
	out := make(map[string][]flatten.Entry)
	for _, e := range entries {
		out[e.Path] = append(out[e.Path], e)
	}
	return out
}

// checkConstraint runs every per-constraint check in a fixed order,
// continuing past the first failure so the full error list is built.
func checkConstraint(c Constraint, occurrences []flatten.Entry, present bool) []string {
	var errs []string

	if c.Required && !present {
		errs = append(errs, fmt.Sprintf("%s: required field is missing", c.FieldPath))
		return errs // nothing else to check without a value
	}
	if !present {
		return errs
	}

	for _, e := range occurrences {
		if e.DataType == flatten.TypeNull {
			if !c.Nullable {
				errs = append(errs, fmt.Sprintf("%s: null value not allowed", c.FieldPath))
			}
			continue
		}

		// A container (array/object) constraint has nothing to compare
		// against directly: containers are never emitted as entries,
		// only their scalar leaves are, so presence under the path is
		// all that can be checked here; array_element_type below covers
		// the per-element shape.
		if c.DataType != "" && c.DataType != flatten.TypeArray && c.DataType != flatten.TypeObject && e.DataType != c.DataType {
			errs = append(errs, fmt.Sprintf("%s: expected type %s, got %s", c.FieldPath, c.DataType, e.DataType))
			continue
		}

		if c.MinValue != nil || c.MaxValue != nil {
			if n, ok := parseNumber(e); ok {
				if c.MinValue != nil && n < *c.MinValue {
					errs = append(errs, fmt.Sprintf("%s: value %v below minimum %v", c.FieldPath, n, *c.MinValue))
				}
				if c.MaxValue != nil && n > *c.MaxValue {
					errs = append(errs, fmt.Sprintf("%s: value %v above maximum %v", c.FieldPath, n, *c.MaxValue))
				}
			}
		}

		if c.MinLength != nil || c.MaxLength != nil {
			length := len([]rune(e.Value))
			if c.MinLength != nil && length < *c.MinLength {
				errs = append(errs, fmt.Sprintf("%s: length %d below minimum %d", c.FieldPath, length, *c.MinLength))
			}
			if c.MaxLength != nil && length > *c.MaxLength {
				errs = append(errs, fmt.Sprintf("%s: length %d above maximum %d", c.FieldPath, length, *c.MaxLength))
			}
		}

		if c.RegexPattern != "" {
			if ok := matchAnchored(c.RegexPattern, e.Value); !ok {
				errs = append(errs, fmt.Sprintf("%s: value does not match pattern %s", c.FieldPath, c.RegexPattern))
			}
		}

		if len(c.AllowedValues) > 0 && !contains(c.AllowedValues, e.Value) {
			errs = append(errs, fmt.Sprintf("%s: value %q not in allowed values", c.FieldPath, e.Value))
		}

		if c.HasArrayElemType && e.Position != nil && e.DataType != c.ArrayElementType {
			errs = append(errs, fmt.Sprintf("%s: array element type mismatch, expected %s, got %s", c.FieldPath, c.ArrayElementType, e.DataType))
		}
	}

	return errs
}

func parseNumber(e flatten.Entry) (float64, bool) {
	if e.DataType != flatten.TypeInteger && e.DataType != flatten.TypeNumber {
		return 0, false
	}
	n, err := strconv.ParseFloat(e.Value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func matchAnchored(pattern, value string) bool {
	anchored := pattern
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^" + anchored
	}
	if !strings.HasSuffix(anchored, "$") {
		anchored = anchored + "$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
