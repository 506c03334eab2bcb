package validate

import (
	"testing"

	"github.com/docvault-db/docvault/internal/flatten"
)

func TestValidate_ModeNoneAlwaysAccepts(t *testing.T) {
	constraints := []Constraint{{FieldPath: "age", Required: true}}
	res := Validate(ModeNone, constraints, nil)
	if !res.Accepted {
		t.Fatal("expected None mode to always accept")
	}
}

func TestValidate_StrictRejectsMissingRequired(t *testing.T) {
	constraints := []Constraint{{FieldPath: "age", Required: true}}
	res := Validate(ModeStrict, constraints, flatten.Entries{})
	if res.Accepted {
		t.Fatal("expected rejection for missing required field")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", res.Errors)
	}
}

func TestValidate_FlexibleAcceptsWithWarnings(t *testing.T) {
	constraints := []Constraint{{FieldPath: "age", Required: true}}
	res := Validate(ModeFlexible, constraints, flatten.Entries{})
	if !res.Accepted {
		t.Fatal("expected Flexible mode to accept despite failures")
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
}

func TestValidate_PartialSkipsAbsentFields(t *testing.T) {
	constraints := []Constraint{{FieldPath: "age", Required: true}}
	res := Validate(ModePartial, constraints, flatten.Entries{})
	if !res.Accepted {
		t.Fatal("expected Partial mode to skip an absent field entirely")
	}
}

func TestValidate_TypeMismatchIsNeverCoerced(t *testing.T) {
	constraints := []Constraint{{FieldPath: "age", DataType: flatten.TypeInteger}}
	entries := flatten.Entries{{Path: "age", DataType: flatten.TypeString, Value: "36"}}
	res := Validate(ModeStrict, constraints, entries)
	if res.Accepted {
		t.Fatal("expected type mismatch to be rejected without coercion")
	}
}

func TestValidate_NumericRange(t *testing.T) {
	min, max := 0.0, 120.0
	constraints := []Constraint{{FieldPath: "age", DataType: flatten.TypeInteger, MinValue: &min, MaxValue: &max}}
	entries := flatten.Entries{{Path: "age", DataType: flatten.TypeInteger, Value: "200"}}
	res := Validate(ModeStrict, constraints, entries)
	if res.Accepted {
		t.Fatal("expected out-of-range value to be rejected")
	}
}

func TestValidate_RegexAnchoredFullMatch(t *testing.T) {
	constraints := []Constraint{{FieldPath: "code", RegexPattern: `[A-Z]{3}`}}
	entries := flatten.Entries{{Path: "code", DataType: flatten.TypeString, Value: "AB-CDE"}}
	res := Validate(ModeStrict, constraints, entries)
	if res.Accepted {
		t.Fatal("expected partial match against an anchored pattern to fail")
	}
}

func TestValidate_AllowedValues(t *testing.T) {
	constraints := []Constraint{{FieldPath: "status", AllowedValues: []string{"open", "closed"}}}
	entries := flatten.Entries{{Path: "status", DataType: flatten.TypeString, Value: "pending"}}
	res := Validate(ModeStrict, constraints, entries)
	if res.Accepted {
		t.Fatal("expected value outside allowed set to be rejected")
	}
}

func TestValidate_UnknownFieldsAllowedUnderStrict(t *testing.T) {
	entries := flatten.Entries{{Path: "extra", DataType: flatten.TypeString, Value: "x"}}
	res := Validate(ModeStrict, nil, entries)
	if !res.Accepted {
		t.Fatal("expected Strict mode to allow fields with no declared constraint")
	}
}
