package query

import (
	"fmt"
	"strconv"
)

// parser consumes tokens from a lexer one at a time with one token of
// lookahead, producing a Plan. The grammar is deliberately small:
// flat AND-only conjunctions, no OR, no parentheses. Encountering
// either is reported as an error rather than silently ignored.
type parser struct {
	lex *lexer
	tok token
}

// ParseSQL parses a single restricted SELECT statement
// ("SELECT * FROM documents [WHERE ...] [ORDER BY f ASC|DESC] [LIMIT n] [OFFSET n]")
// into a Plan.
func ParseSQL(sql string) (*Plan, error) {
	p := &parser{lex: newLexer(sql)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseSelect()
}

// advance reads the next token into p.tok, the parser's one token of lookahead.
func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) current() token { return p.tok }

func (p *parser) expectKeyword(kw string) error {
	t := p.current()
	if keyword(t) != kw {
		return fmt.Errorf("query: expected %s, got %q", kw, t.text)
	}
	return p.advance()
}

func (p *parser) parseSelect() (*Plan, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if p.current().kind != tokStar {
		return nil, fmt.Errorf("query: only SELECT * is supported")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if keyword(p.current()) != "DOCUMENTS" {
		return nil, fmt.Errorf("query: only FROM documents is supported, got %q", p.current().text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	plan := &Plan{Ordering: CreatedAscending, MaxResults: MaxResultsCap}

	if keyword(p.current()) == "WHERE" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		filters, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		plan.Filters = filters
	}

	if keyword(p.current()) == "ORDER" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col := p.current()
		if col.kind != tokIdent {
			return nil, fmt.Errorf("query: expected column after ORDER BY, got %q", col.text)
		}
		spec, ok := orderableColumns[col.text]
		if !ok {
			return nil, fmt.Errorf("query: %q is not an orderable column", col.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		ordering := spec.asc
		switch keyword(p.current()) {
		case "ASC":
			if err := p.advance(); err != nil {
				return nil, err
			}
		case "DESC":
			ordering = spec.desc
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		plan.Ordering = ordering
	}

	if keyword(p.current()) == "LIMIT" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		plan.MaxResults = clampMaxResults(n)
	}

	if keyword(p.current()) == "OFFSET" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n = 0
		}
		plan.Skip = n
	}

	if p.current().kind != tokEOF {
		return nil, fmt.Errorf("query: unexpected trailing input %q", p.current().text)
	}

	return plan, nil
}

// parseConjunction parses predicate (AND predicate)*; an OR or a
// parenthesized group surfaces as an explicit error instead of being
// silently treated as AND or dropped.
func (p *parser) parseConjunction() ([]Filter, error) {
	var filters []Filter
	for {
		f, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)

		switch keyword(p.current()) {
		case "AND":
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		case "OR":
			return nil, fmt.Errorf("query: OR is not supported in the SQL subset")
		default:
			return filters, nil
		}
	}
}

func (p *parser) parsePredicate() (Filter, error) {
	field := p.current()
	if field.kind != tokIdent {
		return Filter{}, fmt.Errorf("query: expected field name, got %q", field.text)
	}
	fieldPath := field.text
	if err := p.advance(); err != nil {
		return Filter{}, err
	}

	if keyword(p.current()) == "IS" {
		if err := p.advance(); err != nil {
			return Filter{}, err
		}
		if keyword(p.current()) == "NOT" {
			if err := p.advance(); err != nil {
				return Filter{}, err
			}
			if err := p.expectKeyword("NULL"); err != nil {
				return Filter{}, err
			}
			return Filter{FieldPath: fieldPath, Condition: IsNotNull}, nil
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return Filter{}, err
		}
		return Filter{FieldPath: fieldPath, Condition: IsNull}, nil
	}

	opTok := p.current()
	var cond Condition
	switch {
	case opTok.kind == tokOp:
		cond = sqlConditions[opTok.text]
	case keyword(opTok) == "LIKE":
		cond = Like
	default:
		return Filter{}, fmt.Errorf("query: expected comparison operator, got %q", opTok.text)
	}
	if err := p.advance(); err != nil {
		return Filter{}, err
	}

	valueTok := p.current()
	var value string
	switch valueTok.kind {
	case tokString, tokNumber, tokIdent:
		value = valueTok.text
	default:
		return Filter{}, fmt.Errorf("query: expected literal value, got %q", valueTok.text)
	}
	if err := p.advance(); err != nil {
		return Filter{}, err
	}

	return Filter{FieldPath: fieldPath, Condition: cond, Value: value}, nil
}

func (p *parser) parseIntLiteral() (int, error) {
	t := p.current()
	if t.kind != tokNumber {
		return 0, fmt.Errorf("query: expected integer literal, got %q", t.text)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, fmt.Errorf("query: invalid integer literal %q: %w", t.text, err)
	}
	if err := p.advance(); err != nil {
		return 0, err
	}
	return n, nil
}
