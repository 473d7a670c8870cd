// Package models defines core data structures for documents, retrieval results, and usage reporting.
package models

import (
	"encoding/json"
	"time"
)

// Document is a retrievable unit of content: a SQL query (usually with a
// synthetic context header) plus its metadata. Documents are immutable for
// the lifetime of a request; the pipeline filters and reorders them but
// never mutates them.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	Metadata  Metadata  `json:"metadata" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Metadata holds the well-known optional fields read by the pipeline plus an
// Extra bucket for anything else the ingestion side attached. Unknown keys
// round-trip through Extra untouched.
type Metadata struct {
	Source      string
	Description string
	Table       string
	Tables      []string
	Joins       []string
	ChunkIndex  int
	Extra       map[string]interface{}
}

// knownMetadataKeys are the keys lifted into struct fields; everything else
// lands in Extra.
var knownMetadataKeys = map[string]struct{}{
	"source":      {},
	"description": {},
	"table":       {},
	"tables":      {},
	"joins":       {},
	"chunk_index": {},
}

// MarshalJSON flattens the known fields and Extra into one object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+6)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Source != "" {
		out["source"] = m.Source
	}
	if m.Description != "" {
		out["description"] = m.Description
	}
	if m.Table != "" {
		out["table"] = m.Table
	}
	if len(m.Tables) > 0 {
		out["tables"] = m.Tables
	}
	if len(m.Joins) > 0 {
		out["joins"] = m.Joins
	}
	if m.ChunkIndex != 0 {
		out["chunk_index"] = m.ChunkIndex
	}
	return json.Marshal(out)
}

// UnmarshalJSON lifts known keys into fields and keeps the rest in Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	if v, ok := raw["source"].(string); ok {
		m.Source = v
	}
	if v, ok := raw["description"].(string); ok {
		m.Description = v
	}
	if v, ok := raw["table"].(string); ok {
		m.Table = v
	}
	if v, ok := raw["tables"].([]interface{}); ok {
		for _, t := range v {
			if s, ok := t.(string); ok {
				m.Tables = append(m.Tables, s)
			}
		}
	}
	if v, ok := raw["joins"].([]interface{}); ok {
		for _, j := range v {
			if s, ok := j.(string); ok {
				m.Joins = append(m.Joins, s)
			}
		}
	}
	if v, ok := raw["chunk_index"].(float64); ok {
		m.ChunkIndex = int(v)
	}
	for k, v := range raw {
		if _, known := knownMetadataKeys[k]; known {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]interface{})
		}
		m.Extra[k] = v
	}
	return nil
}

// TableList returns the table names referenced by the metadata, combining the
// singular and plural fields.
func (m Metadata) TableList() []string {
	if m.Table == "" {
		return m.Tables
	}
	out := make([]string, 0, len(m.Tables)+1)
	out = append(out, m.Table)
	for _, t := range m.Tables {
		if t != m.Table {
			out = append(out, t)
		}
	}
	return out
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	ID       string   `json:"id,omitempty"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}
