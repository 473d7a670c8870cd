// Package validate checks generated SQL against the schema catalog. It is
// advisory: findings annotate the answer and never block it.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/queryscout/queryscout/internal/schema"
)

// Result is the structured outcome of validating one answer's SQL.
type Result struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	TablesFound  []string `json:"tables_found,omitempty"`
	ColumnsFound []string `json:"columns_found,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

var (
	fencedSQLPattern = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
	columnRefPattern = regexp.MustCompile(`\b(\w+)\.(\w+)\b`)
)

// Validator resolves tables and columns against the loaded catalog.
type Validator struct {
	catalog *schema.Manager
}

func New(catalog *schema.Manager) *Validator {
	return &Validator{catalog: catalog}
}

// ValidateAnswer pulls SQL out of the answer text and validates it. An
// answer with no SQL in it is trivially valid.
func (v *Validator) ValidateAnswer(answer string) *Result {
	sql := ExtractSQL(answer)
	if sql == "" {
		return &Result{IsValid: true}
	}
	return v.ValidateSQL(sql)
}

// ValidateSQL checks table and column references. Unknown tables are errors,
// unknown columns warnings: column extraction from alias-heavy SQL is too
// imprecise to call a miss fatal.
func (v *Validator) ValidateSQL(sql string) *Result {
	result := &Result{IsValid: true}

	aliases := make(map[string]string)
	for _, table := range schema.ExtractTables(sql) {
		result.TablesFound = append(result.TablesFound, table)
		if v.catalog.HasTable(table) {
			continue
		}
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("unknown table: %s", table))
		for _, s := range v.catalog.SuggestTables(table, 2) {
			result.Suggestions = append(result.Suggestions,
				fmt.Sprintf("table %s: did you mean %s?", table, s))
		}
	}
	for alias, table := range tableAliases(sql) {
		aliases[alias] = table
	}

	seen := make(map[string]bool)
	for _, m := range columnRefPattern.FindAllStringSubmatch(sql, -1) {
		qualifier, column := strings.ToLower(m[1]), m[2]
		table := qualifier
		if resolved, ok := aliases[qualifier]; ok {
			table = resolved
		}
		if !v.catalog.HasTable(table) {
			continue
		}
		ref := table + "." + strings.ToLower(column)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if v.catalog.HasColumn(table, column) {
			result.ColumnsFound = append(result.ColumnsFound, ref)
			continue
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unknown column %s on table %s", column, table))
		for _, s := range v.catalog.SuggestColumns(table, strings.ToLower(column), 2) {
			result.Suggestions = append(result.Suggestions,
				fmt.Sprintf("column %s.%s: did you mean %s?", table, column, s))
		}
	}
	return result
}

// ExtractSQL returns the SQL carried in an answer: fenced code blocks when
// present, otherwise the whole text if it is statement-shaped.
func ExtractSQL(answer string) string {
	matches := fencedSQLPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) > 0 {
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			if block := strings.TrimSpace(m[1]); block != "" {
				parts = append(parts, block)
			}
		}
		return strings.Join(parts, "\n")
	}
	if schema.LooksLikeSQL(answer) {
		return answer
	}
	return ""
}

var aliasPattern = regexp.MustCompile(
	`(?i)\b(?:from|join)\s+([` + "`" + `"\w.]+)\s+(?:as\s+)?(\w+)\b`)

// tableAliases maps alias -> normalized table for FROM/JOIN clauses. SQL
// keywords that follow a table reference are not aliases.
func tableAliases(sql string) map[string]string {
	aliases := make(map[string]string)
	for _, m := range aliasPattern.FindAllStringSubmatch(sql, -1) {
		alias := strings.ToLower(m[2])
		switch alias {
		case "on", "where", "join", "inner", "left", "right", "full", "cross",
			"group", "order", "having", "limit", "union", "set", "using", "as":
			continue
		}
		aliases[alias] = schema.NormalizeTableName(m[1])
	}
	return aliases
}
