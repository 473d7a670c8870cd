// Package schema reduces a table/column catalog to the subset relevant to a
// query and extracts table references from SQL and free text.
package schema

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Column is one catalog entry under a table.
type Column struct {
	Name     string
	DataType string
}

// Manager holds the loaded catalog. It is immutable after load; reloading
// requires constructing a new Manager.
type Manager struct {
	columns   map[string][]Column
	qualified map[string]string
	logger    *zap.Logger
}

// RelevantSchemaResult is a formatted schema snippet plus counts for
// telemetry.
type RelevantSchemaResult struct {
	Schema         string
	TablesFound    []string
	TablesNotFound []string
}

// NewManager loads the catalog at path. A missing or unreadable catalog is an
// error here, not at first use: running without schema filtering must be an
// explicit caller decision.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		columns:   make(map[string][]Column),
		qualified: make(map[string]string),
		logger:    logger,
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = m.loadCSV(path)
	case ".xlsx":
		err = m.loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schema catalog %s: %w", path, err)
	}
	if len(m.columns) == 0 {
		return nil, fmt.Errorf("schema catalog %s contains no tables", path)
	}
	logger.Info("schema catalog loaded",
		zap.String("path", path),
		zap.Int("tables", len(m.columns)))
	return m, nil
}

// NormalizeTableName strips quoting characters, takes the last dot-separated
// segment, and lowercases. "analytics"."Daily_Revenue" and daily_revenue
// resolve to the same key.
func NormalizeTableName(name string) string {
	name = strings.Trim(name, " \t\r\n")
	name = strings.NewReplacer("`", "", `"`, "", "'", "", "[", "", "]", "").Replace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

func (m *Manager) addRow(tableID, column, datatype, qualifiedName string) {
	if tableID == "" || column == "" {
		return
	}
	key := NormalizeTableName(tableID)
	if key == "" {
		return
	}
	m.columns[key] = append(m.columns[key], Column{Name: column, DataType: datatype})
	if qualifiedName != "" {
		m.qualified[key] = qualifiedName
	} else if _, ok := m.qualified[key]; !ok && strings.Contains(tableID, ".") {
		m.qualified[key] = strings.NewReplacer("`", "", `"`, "").Replace(tableID)
	}
}

// loadCSV reads rows of (table, column, datatype[, qualified_name]). A header
// row is detected by its first cell and skipped.
func (m *Manager) loadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse csv: %w", err)
		}
		if first {
			first = false
			if isHeaderRow(record) {
				continue
			}
		}
		m.addRow(cell(record, 0), cell(record, 1), cell(record, 2), cell(record, 3))
	}
	return nil
}

func (m *Manager) loadXLSX(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		m.addRow(cell(row, 0), cell(row, 1), cell(row, 2), cell(row, 3))
	}
	return nil
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(record[0])) {
	case "table", "table_name", "tablename", "table_identifier":
		return true
	}
	return false
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// HasTable reports whether the catalog knows the (normalized) table name.
func (m *Manager) HasTable(name string) bool {
	_, ok := m.columns[NormalizeTableName(name)]
	return ok
}

// HasColumn reports whether the catalog knows the column under the table.
func (m *Manager) HasColumn(table, column string) bool {
	cols, ok := m.columns[NormalizeTableName(table)]
	if !ok {
		return false
	}
	column = strings.ToLower(column)
	for _, c := range cols {
		if strings.ToLower(c.Name) == column {
			return true
		}
	}
	return false
}

// TableNames returns all normalized table names in the catalog, sorted.
func (m *Manager) TableNames() []string {
	names := make([]string, 0, len(m.columns))
	for name := range m.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnNames returns the column names of the given table, or nil.
func (m *Manager) ColumnNames(table string) []string {
	cols, ok := m.columns[NormalizeTableName(table)]
	if !ok {
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// RelevantSchema formats the schema for the given tables, capped at
// maxTables after deduplication. Unknown tables are reported, not errors.
// Empty input yields an empty schema string.
func (m *Manager) RelevantSchema(tableNames []string, maxTables int) *RelevantSchemaResult {
	result := &RelevantSchemaResult{}
	if len(tableNames) == 0 {
		return result
	}
	if maxTables <= 0 {
		maxTables = len(tableNames)
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(tableNames))
	for _, name := range tableNames {
		key := NormalizeTableName(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, key)
	}
	if len(unique) > maxTables {
		unique = unique[:maxTables]
	}

	var sb strings.Builder
	for _, key := range unique {
		cols, ok := m.columns[key]
		if !ok {
			result.TablesNotFound = append(result.TablesNotFound, key)
			continue
		}
		result.TablesFound = append(result.TablesFound, key)

		display := key
		if fqn, ok := m.qualified[key]; ok {
			display = fqn
		}
		sb.WriteString(display)
		sb.WriteString(":\n")
		for _, col := range cols {
			sb.WriteString("  ")
			sb.WriteString(col.Name)
			if col.DataType != "" {
				sb.WriteString(" (")
				sb.WriteString(col.DataType)
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
	}
	result.Schema = sb.String()
	return result
}
