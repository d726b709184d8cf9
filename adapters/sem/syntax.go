package sem

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"semprep/domain/core"
	domainsem "semprep/domain/sem"
)

// Term is one right-hand side entry of a relation, optionally with a fixed
// coefficient written as "value*name".
type Term struct {
	Name  string
	Fixed *float64
}

// Relation is one parsed statement, e.g. "y ~ x1 + x2"
type Relation struct {
	Line int
	LHS  string
	Op   string
	RHS  []Term
}

// operators in match order: "=~" and "~~" must be tried before "~"
var operators = []string{domainsem.OpMeasurement, domainsem.OpCovariance, domainsem.OpRegression}

var identifier = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)

// ParseSyntax parses a lavaan-style model description. Statements are
// separated by newlines or semicolons, '#' starts a comment, and a statement
// with several left-hand variables ("a + b ~ x") expands to one relation each.
func ParseSyntax(description string) ([]Relation, error) {
	var relations []Relation
	for lineNo, line := range strings.Split(description, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			parsed, err := parseStatement(lineNo+1, stmt)
			if err != nil {
				return nil, err
			}
			relations = append(relations, parsed...)
		}
	}
	if len(relations) == 0 {
		return nil, fmt.Errorf("%w: no statements", core.ErrInvalidModel)
	}
	return relations, nil
}

func parseStatement(line int, stmt string) ([]Relation, error) {
	op, pos := "", -1
	for _, candidate := range operators {
		if i := strings.Index(stmt, candidate); i >= 0 {
			op, pos = candidate, i
			break
		}
	}
	if pos < 0 {
		return nil, core.NewModelSyntaxError(line, fmt.Sprintf("no operator in %q", stmt))
	}

	lhsTerms, err := parseTerms(line, stmt[:pos])
	if err != nil {
		return nil, err
	}
	rhs, err := parseTerms(line, stmt[pos+len(op):])
	if err != nil {
		return nil, err
	}

	relations := make([]Relation, 0, len(lhsTerms))
	for _, lhs := range lhsTerms {
		if lhs.Fixed != nil {
			return nil, core.NewModelSyntaxError(line, "modifiers are not allowed on the left-hand side")
		}
		relations = append(relations, Relation{Line: line, LHS: lhs.Name, Op: op, RHS: rhs})
	}
	return relations, nil
}

func parseTerms(line int, s string) ([]Term, error) {
	parts := strings.Split(s, "+")
	terms := make([]Term, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, core.NewModelSyntaxError(line, "empty term")
		}

		var term Term
		if i := strings.LastIndex(part, "*"); i >= 0 {
			modifier := strings.TrimSpace(part[:i])
			part = strings.TrimSpace(part[i+1:])
			if !strings.EqualFold(modifier, "NA") {
				v, err := strconv.ParseFloat(modifier, 64)
				if err != nil {
					return nil, core.NewModelSyntaxError(line, fmt.Sprintf("unsupported modifier %q", modifier))
				}
				term.Fixed = &v
			}
		}
		if !identifier.MatchString(part) {
			return nil, core.NewModelSyntaxError(line, fmt.Sprintf("invalid variable name %q", part))
		}
		term.Name = part
		terms = append(terms, term)
	}
	return terms, nil
}
