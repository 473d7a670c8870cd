package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/llm"
)

const extractSystemPrompt = `You extract table names from SQL statements.
Return a JSON array of the real table names the statement reads or writes.
Exclude CTE aliases, subquery aliases, and column names. Return [] if there
are none. Respond with the JSON array only.`

// LLMExtractor asks a language model for the table references in a SQL
// statement. It handles CTEs and aliases better than pattern matching. Use
// it behind FallbackExtractor so a model failure degrades to regex.
type LLMExtractor struct {
	client llm.Client
	logger *zap.Logger
}

func NewLLMExtractor(client llm.Client, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{client: client, logger: logger}
}

func (e *LLMExtractor) ExtractTables(ctx context.Context, text string) ([]string, error) {
	answer, _, err := e.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("table extraction call failed: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &names); err != nil {
		return nil, fmt.Errorf("table extraction returned malformed response: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := NormalizeTableName(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, nil
}

// FallbackExtractor prefers the primary extractor for SQL-shaped input and
// falls back to regex extraction when the primary is unavailable, fails, or
// the input is prose.
type FallbackExtractor struct {
	primary TableExtractor
	logger  *zap.Logger
}

func NewFallbackExtractor(primary TableExtractor, logger *zap.Logger) *FallbackExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackExtractor{primary: primary, logger: logger}
}

func (e *FallbackExtractor) ExtractTables(ctx context.Context, text string) ([]string, error) {
	if e.primary != nil && LooksLikeSQL(text) {
		tables, err := e.primary.ExtractTables(ctx, text)
		if err == nil {
			return tables, nil
		}
		e.logger.Warn("primary table extraction failed, falling back to regex", zap.Error(err))
	}
	return ExtractTables(text), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
