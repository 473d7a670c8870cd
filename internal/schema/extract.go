package schema

import (
	"context"
	"regexp"
	"strings"
)

// TableExtractor finds table references in SQL or free text. Implementations
// can be swapped without touching callers; the regex extractor is the
// always-available fallback.
type TableExtractor interface {
	ExtractTables(ctx context.Context, text string) ([]string, error)
}

var (
	// Table references follow FROM, JOIN variants, UPDATE, INSERT INTO, and
	// DELETE FROM. Identifiers may be quoted and dotted.
	tableRefPattern = regexp.MustCompile(
		`(?i)\b(?:from|join|update|insert\s+into|delete\s+from)\s+([` + "`" + `"\[\]\w.]+)`)

	// Free-text metadata mentions: "Tables: orders, customers".
	tablesLinePattern = regexp.MustCompile(`(?i)\btables?\s*:\s*([^\n]+)`)

	withClausePattern = regexp.MustCompile(`(?i)\bwith\s+(recursive\s+)?`)
	cteNamePattern    = regexp.MustCompile(`(?i)^\s*,?\s*([` + "`" + `"\w]+)\s+as\s*\(`)

	sqlShapePattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create)\b`)
)

// RegexExtractor is the pattern-matching TableExtractor. Its error is always
// nil; it exists to satisfy the interface.
type RegexExtractor struct{}

func (RegexExtractor) ExtractTables(_ context.Context, text string) ([]string, error) {
	return ExtractTables(text), nil
}

// LooksLikeSQL reports whether the text is shaped like a SQL statement
// rather than prose.
func LooksLikeSQL(text string) bool {
	return sqlShapePattern.MatchString(text)
}

// ExtractTables parses table references out of SQL keywords and free-text
// "Tables:" mentions. CTE aliases introduced by WITH clauses are excluded,
// but real tables referenced inside CTE bodies are kept.
func ExtractTables(text string) []string {
	ctes := cteAliases(text)

	seen := make(map[string]bool)
	var tables []string
	add := func(raw string) {
		name := NormalizeTableName(raw)
		if name == "" || seen[name] || ctes[name] {
			return
		}
		// A bare SQL keyword after FROM (e.g. "delete from" matched twice)
		// or a subquery paren is not a table.
		switch name {
		case "select", "where", "values", "lateral", "unnest":
			return
		}
		seen[name] = true
		tables = append(tables, name)
	}

	for _, match := range tableRefPattern.FindAllStringSubmatch(text, -1) {
		add(match[1])
	}
	for _, match := range tablesLinePattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(match[1], ",") {
			part = strings.TrimSpace(part)
			// Stop at the first token; "orders and customers" in prose
			// yields "orders" not "orders and customers".
			if fields := strings.Fields(part); len(fields) > 0 {
				add(fields[0])
			}
		}
	}
	return tables
}

// cteAliases returns the normalized names introduced by WITH clauses. The
// scan is paren-depth aware: each CTE body is skipped to its closing paren
// so that commas and AS keywords inside the body do not start false aliases,
// while the body itself is still visible to ExtractTables for real table
// references.
func cteAliases(text string) map[string]bool {
	aliases := make(map[string]bool)
	for _, loc := range withClausePattern.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		for {
			m := cteNamePattern.FindStringSubmatch(rest)
			if m == nil {
				break
			}
			aliases[NormalizeTableName(m[1])] = true

			// Skip past the CTE body.
			open := strings.Index(rest, "(")
			if open < 0 {
				break
			}
			depth := 0
			end := -1
			for i := open; i < len(rest); i++ {
				switch rest[i] {
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						end = i
					}
				}
				if end >= 0 {
					break
				}
			}
			if end < 0 {
				break
			}
			rest = rest[end+1:]
		}
	}
	return aliases
}
