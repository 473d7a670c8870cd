// Package cli provides output formatting for the QueryScout CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteSearchResults writes retrieval results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (method: %s)\n",
		response.Total, response.QueryTimeMS, response.Method)
	if response.Degraded {
		fmt.Fprintln(w, "Note: search ran in degraded mode.")
	}
	fmt.Fprintln(w)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
	return nil
}

func writeOneResult(w io.Writer, rank int, result *models.ScoredResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%s] Rank: %d | Score: %.4f (Vector: %.4f, Keyword: %.4f)\n",
		result.Method, rank, result.FusedScore, result.VectorScore, result.KeywordScore)
	fmt.Fprintf(w, "ID: %s\n", result.Document.ID)
	if result.Document.Metadata.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", result.Document.Metadata.Description)
	}
	if tables := result.Document.Metadata.TableList(); len(tables) > 0 {
		fmt.Fprintf(w, "Tables: %s\n", strings.Join(tables, ", "))
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Document.Content, 300))
}

// WriteAskResult writes an answer with its sources and a usage summary.
func WriteAskResult(w io.Writer, response *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}
	fmt.Fprintf(w, "\n%s\n", response.Answer)
	if len(response.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%d):\n", len(response.Sources))
		for i, src := range response.Sources {
			desc := src.Document.Metadata.Description
			if desc == "" {
				desc = utils.Truncate(src.Document.Content, 60)
			}
			fmt.Fprintf(w, "  %d. [%s] %s (score %.3f)\n", i+1, src.Document.ID, desc, src.FusedScore)
		}
	}
	if u := response.Usage; u != nil {
		fmt.Fprintf(w, "\n%s\n", usageSummary(u))
	}
	return nil
}

func usageSummary(u *models.Usage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "method=%s retrieved=%d processed=%d in_context=%d tokens=%d retrieval=%dms generation=%dms",
		u.SearchMethod, u.DocumentsRetrieved, u.DocumentsProcessed, u.ContextDocuments,
		u.TotalTokens, u.RetrievalTimeMS, u.GenerationTimeMS)
	if u.Degraded {
		fmt.Fprintf(&sb, " degraded=%q", u.DegradedReason)
	}
	if u.Rewrite != nil && u.Rewrite.Applied {
		fmt.Fprintf(&sb, " rewritten=%q", u.Rewrite.Rewritten)
	}
	if u.Validation != nil && !u.Validation.Valid {
		fmt.Fprintf(&sb, " sql_warnings=%d", len(u.Validation.Errors)+len(u.Validation.Warnings))
	}
	return sb.String()
}
