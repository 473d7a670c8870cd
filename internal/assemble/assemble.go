// Package assemble builds the bounded prompt context from retrieved
// documents.
package assemble

import (
	"fmt"
	"strings"

	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/pkg/utils"
)

// Input is everything that competes for the token budget. Documents must
// already be deduplicated and diversity-ordered; order decides who survives
// the budget cut.
type Input struct {
	Query     string
	Documents []*models.Document
	// Schema is the reduced catalog snippet, empty when schema filtering is
	// off or found nothing.
	Schema string
	// History is prior conversation turns, oldest first.
	History []models.Turn
	// Extra is caller-supplied context prepended before the documents.
	Extra string
}

// Result is the assembled context and what made it in, for telemetry.
type Result struct {
	Context           string
	DocumentsIncluded int
	EstimatedTokens   int
}

const footer = "Answer using only the SQL examples above. " +
	"If they do not cover the question, say so instead of guessing."

// Build greedily packs sections under maxTokens using the shared estimator.
// A document that would push the estimate over the budget is dropped whole,
// never truncated mid-section, and nothing after it is considered.
func Build(in Input, maxTokens int) *Result {
	var sb strings.Builder

	// The check estimates the concatenation, not the sum of parts, so the
	// final context's own estimate stays within budget.
	writeIfFits := func(section string) bool {
		if estimateConcat(sb.Len(), len(section)) > maxTokens {
			return false
		}
		sb.WriteString(section)
		return true
	}

	// The header competes for the budget like everything else; a budget too
	// small for even the header yields an empty context.
	writeIfFits(fmt.Sprintf(
		"Question: %s\n\nRetrieved %d SQL examples from the query corpus.\n",
		in.Query, len(in.Documents)))

	if in.Extra != "" {
		writeIfFits("\nAdditional context:\n" + in.Extra + "\n")
	}
	if in.Schema != "" {
		writeIfFits("\nRelevant schema:\n" + in.Schema)
	}
	if len(in.History) > 0 {
		var hb strings.Builder
		hb.WriteString("\nConversation so far:\n")
		for _, turn := range in.History {
			hb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		writeIfFits(hb.String())
	}

	included := 0
	for i, doc := range in.Documents {
		if !writeIfFits(formatDocument(i+1, doc)) {
			break
		}
		included++
	}

	writeIfFits("\n" + footer + "\n")

	context := sb.String()
	return &Result{
		Context:           context,
		DocumentsIncluded: included,
		EstimatedTokens:   utils.EstimateTokens(context),
	}
}

func estimateConcat(currentLen, sectionLen int) int {
	return (currentLen + sectionLen) / 4
}

func formatDocument(n int, doc *models.Document) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n--- Example %d ---\n", n))
	if doc.Metadata.Description != "" {
		sb.WriteString("Description: " + doc.Metadata.Description + "\n")
	}
	if tables := doc.Metadata.TableList(); len(tables) > 0 {
		sb.WriteString("Tables: " + strings.Join(tables, ", ") + "\n")
	}
	if len(doc.Metadata.Joins) > 0 {
		sb.WriteString("Joins: " + strings.Join(doc.Metadata.Joins, ", ") + "\n")
	}
	sb.WriteString(doc.Content)
	sb.WriteString("\n")
	return sb.String()
}
