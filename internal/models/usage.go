package models

// Usage is the telemetry payload returned with every answer. It is the
// introspection surface for retrieval quality: it records which stages ran,
// how they degraded, and enough numbers to reconstruct why a document set
// was chosen.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	SearchMethod       string `json:"search_method"`
	RetrievalTimeMS    int64  `json:"retrieval_time_ms"`
	GenerationTimeMS   int64  `json:"generation_time_ms"`
	DocumentsRetrieved int    `json:"documents_retrieved"`
	DocumentsProcessed int    `json:"documents_processed"`
	ContextDocuments   int    `json:"context_documents"`

	VectorWeight  float64 `json:"vector_weight"`
	KeywordWeight float64 `json:"keyword_weight"`

	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	Rewrite         *RewriteUsage    `json:"query_rewriting,omitempty"`
	SchemaFiltering *SchemaUsage     `json:"schema_filtering,omitempty"`
	Validation      *ValidationUsage `json:"sql_validation,omitempty"`
}

// RewriteUsage reports the query-rewriting stage.
type RewriteUsage struct {
	Enabled    bool    `json:"enabled"`
	Applied    bool    `json:"applied"`
	Original   string  `json:"original,omitempty"`
	Rewritten  string  `json:"rewritten,omitempty"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// SchemaUsage reports the schema-filtering stage.
type SchemaUsage struct {
	Enabled        bool     `json:"enabled"`
	TableCount     int      `json:"table_count"`
	TablesFound    []string `json:"tables_found,omitempty"`
	TablesNotFound []string `json:"tables_not_found,omitempty"`
	SchemaTokens   int      `json:"schema_tokens"`
	Error          string   `json:"error,omitempty"`
}

// ValidationUsage reports the advisory SQL validation stage.
type ValidationUsage struct {
	Enabled  bool     `json:"enabled"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}
