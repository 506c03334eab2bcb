package docvault

import "fmt"

// SchemaEnforcementMode selects how Collection.Ingest applies a
// collection's FieldConstraint list.
type SchemaEnforcementMode int

const (
	EnforcementNone SchemaEnforcementMode = iota
	EnforcementStrict
	EnforcementFlexible
	EnforcementPartial
)

// String renders the wire (camelCase) form of the mode.
func (m SchemaEnforcementMode) String() string {
	switch m {
	case EnforcementNone:
		return "none"
	case EnforcementStrict:
		return "strict"
	case EnforcementFlexible:
		return "flexible"
	case EnforcementPartial:
		return "partial"
	default:
		return fmt.Sprintf("SchemaEnforcementMode(%d)", int(m))
	}
}

// ParseSchemaEnforcementMode parses the wire string form, accepting the
// lowercase or the capitalized spelling; other casings are rejected.
func ParseSchemaEnforcementMode(s string) (SchemaEnforcementMode, error) {
	switch s {
	case "none", "None", "":
		return EnforcementNone, nil
	case "strict", "Strict":
		return EnforcementStrict, nil
	case "flexible", "Flexible":
		return EnforcementFlexible, nil
	case "partial", "Partial":
		return EnforcementPartial, nil
	default:
		return 0, fmt.Errorf("docvault: unknown schema enforcement mode %q", s)
	}
}

// IndexingMode selects which flattened leaves are fanned out to index
// tables on ingest.
type IndexingMode int

const (
	IndexingAll IndexingMode = iota
	IndexingSelective
	IndexingNone
)

func (m IndexingMode) String() string {
	switch m {
	case IndexingAll:
		return "all"
	case IndexingSelective:
		return "selective"
	case IndexingNone:
		return "none"
	default:
		return fmt.Sprintf("IndexingMode(%d)", int(m))
	}
}

// ParseIndexingMode parses the wire string form, accepting the
// lowercase or the capitalized spelling; other casings are rejected.
func ParseIndexingMode(s string) (IndexingMode, error) {
	switch s {
	case "all", "All", "":
		return IndexingAll, nil
	case "selective", "Selective":
		return IndexingSelective, nil
	case "none", "None":
		return IndexingNone, nil
	default:
		return 0, fmt.Errorf("docvault: unknown indexing mode %q", s)
	}
}
