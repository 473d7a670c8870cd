// Package corpus parses query collections from .sql, .csv, and .xlsx files
// into document inputs for indexing.
package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/queryscout/queryscout/internal/models"
)

// SupportedExtensions lists the corpus file formats, in the form watch
// config uses.
var SupportedExtensions = []string{".sql", ".csv", ".xlsx"}

// LoadFile parses one corpus file into document inputs. The document IDs are
// left empty; the indexer derives deterministic IDs from the source path.
func LoadFile(path string) ([]*models.DocumentInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sql":
		return loadSQL(path)
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported corpus format: %s", path)
	}
}

// loadSQL splits a file into statements on semicolons. Comment lines
// directly above a statement become its description, and a "Tables:" comment
// populates table metadata.
func loadSQL(path string) ([]*models.DocumentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []*models.DocumentInput
	for _, stmt := range splitStatements(string(data)) {
		comments, body := splitLeadingComments(stmt)
		if strings.TrimSpace(body) == "" {
			continue
		}
		doc := &models.DocumentInput{
			Content: strings.TrimSpace(body),
			Metadata: models.Metadata{
				Source: path,
			},
		}
		applyComments(doc, comments)
		docs = append(docs, doc)
	}
	return docs, nil
}

// splitStatements cuts on semicolons outside of quotes and line comments.
func splitStatements(sql string) []string {
	var statements []string
	var cur strings.Builder
	inSingle, inDouble, inComment := false, false, false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			inComment = true
		case c == ';':
			statements = append(statements, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if strings.TrimSpace(cur.String()) != "" {
		statements = append(statements, cur.String())
	}
	return statements
}

func splitLeadingComments(stmt string) (comments []string, body string) {
	lines := strings.Split(stmt, "\n")
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "--") {
			comments = append(comments, strings.TrimSpace(strings.TrimPrefix(trimmed, "--")))
			continue
		}
		break
	}
	return comments, strings.Join(lines[i:], "\n")
}

func applyComments(doc *models.DocumentInput, comments []string) {
	var description []string
	for _, c := range comments {
		lower := strings.ToLower(c)
		switch {
		case strings.HasPrefix(lower, "tables:"):
			for _, t := range strings.Split(c[len("tables:"):], ",") {
				if t = strings.TrimSpace(t); t != "" {
					doc.Metadata.Tables = append(doc.Metadata.Tables, t)
				}
			}
		case strings.HasPrefix(lower, "description:"):
			description = append(description, strings.TrimSpace(c[len("description:"):]))
		default:
			description = append(description, c)
		}
	}
	doc.Metadata.Description = strings.Join(description, " ")
}

// loadCSV reads rows of exported queries. Column positions come from the
// header when one names a query column; otherwise the first column is the
// query and the second the description.
func loadCSV(path string) ([]*models.DocumentInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var docs []*models.DocumentInput
	cols := columnLayout{query: 0, description: 1, tables: -1}
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		if first {
			first = false
			if layout, ok := layoutFromHeader(record); ok {
				cols = layout
				continue
			}
		}
		if doc := cols.document(record, path); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func loadXLSX(path string) ([]*models.DocumentInput, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	var docs []*models.DocumentInput
	cols := columnLayout{query: 0, description: 1, tables: -1}
	for i, row := range rows {
		if i == 0 {
			if layout, ok := layoutFromHeader(row); ok {
				cols = layout
				continue
			}
		}
		if doc := cols.document(row, path); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

type columnLayout struct {
	query       int
	description int
	tables      int
}

func layoutFromHeader(record []string) (columnLayout, bool) {
	layout := columnLayout{query: -1, description: -1, tables: -1}
	for i, name := range record {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "query", "sql", "statement":
			layout.query = i
		case "description", "name", "title":
			if layout.description < 0 {
				layout.description = i
			}
		case "tables", "table":
			layout.tables = i
		}
	}
	return layout, layout.query >= 0
}

func (c columnLayout) document(record []string, source string) *models.DocumentInput {
	query := strings.TrimSpace(field(record, c.query))
	if query == "" {
		return nil
	}
	doc := &models.DocumentInput{
		Content: query,
		Metadata: models.Metadata{
			Source:      source,
			Description: strings.TrimSpace(field(record, c.description)),
		},
	}
	if raw := field(record, c.tables); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				doc.Metadata.Tables = append(doc.Metadata.Tables, t)
			}
		}
	}
	return doc
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
