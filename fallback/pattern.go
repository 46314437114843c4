package fallback

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Pattern is one heuristic rule. Every match of Expr becomes an annotation
// carrying a copy of Payload plus the pattern name and matched text.
type Pattern struct {
	Name    string         `mapstructure:"name" json:"name"`
	Expr    string         `mapstructure:"expr" json:"expr"`
	Payload map[string]any `mapstructure:"payload" json:"payload,omitempty"`
}

// DefaultPatterns returns the built-in heuristic rules.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:    "todo",
			Expr:    `\b(TODO|FIXME|XXX)\b`,
			Payload: map[string]any{"severity": "info", "message": "unresolved marker"},
		},
		{
			Name:    "debug-print",
			Expr:    `\b(console\.log|fmt\.Println|print)\(`,
			Payload: map[string]any{"severity": "warning", "message": "debug output left in code"},
		},
		{
			Name:    "empty-catch",
			Expr:    `catch\s*(\([^)]*\))?\s*\{\s*\}`,
			Payload: map[string]any{"severity": "warning", "message": "error silently ignored"},
		},
		{
			Name:    "hardcoded-secret",
			Expr:    `(?i)(api[_-]?key|secret|password)\s*[:=]\s*["'][^"']+["']`,
			Payload: map[string]any{"severity": "error", "message": "credential in source"},
		},
	}
}

type rule struct {
	name    string
	re      *regexp.Regexp
	payload map[string]any
}

// PatternTable annotates source line by line with regular expressions. It
// needs no external dependency and is meant for the static tier.
type PatternTable struct {
	rules []rule
}

// NewPatternTable compiles patterns in order. A pattern that fails to
// compile is reported with ErrInvalidPattern.
func NewPatternTable(patterns []Pattern) (*PatternTable, error) {
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: missing name for %q", ErrInvalidPattern, p.Expr)
		}
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, p.Name, err)
		}
		rules = append(rules, rule{name: p.Name, re: re, payload: maps.Clone(p.Payload)})
	}
	return &PatternTable{rules: rules}, nil
}

// MustPatternTable is like NewPatternTable but panics on error.
func MustPatternTable(patterns []Pattern) *PatternTable {
	t, err := NewPatternTable(patterns)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rules.
func (t *PatternTable) Len() int {
	return len(t.rules)
}

// Annotate returns every match in req.Source ordered by position. Matches
// never span lines.
func (t *PatternTable) Annotate(ctx context.Context, req Request) ([]Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Annotation
	offset := 0
	for i, line := range strings.Split(req.Source, "\n") {
		var found []Annotation
		for _, r := range t.rules {
			for _, loc := range r.re.FindAllStringIndex(line, -1) {
				payload := make(map[string]any, len(r.payload)+2)
				maps.Copy(payload, r.payload)
				payload["pattern"] = r.name
				payload["match"] = line[loc[0]:loc[1]]

				found = append(found, Annotation{
					Span:    Span{Start: offset + loc[0], End: offset + loc[1], Line: i + 1},
					Payload: payload,
				})
			}
		}
		slices.SortStableFunc(found, func(a, b Annotation) int { return a.Span.Start - b.Span.Start })
		out = append(out, found...)
		offset += len(line) + 1
	}
	return out, nil
}
