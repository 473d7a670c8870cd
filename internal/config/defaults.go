package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/queryscout/data/db/corpus.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/queryscout/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/queryscout/data/indices/vectors.bin"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.RetryBaseDelayMS == 0 {
		cfg.LLM.RetryBaseDelayMS = 500
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 50
	}
	if cfg.Search.VectorWeight == 0 && cfg.Search.KeywordWeight == 0 {
		cfg.Search.VectorWeight = 0.7
		cfg.Search.KeywordWeight = 0.3
	}
	if cfg.Search.LexicalVectorWeight == 0 {
		cfg.Search.LexicalVectorWeight = 0.4
	}
	if cfg.Search.SemanticVectorWeight == 0 {
		cfg.Search.SemanticVectorWeight = 0.85
	}
	if cfg.Search.DedupThreshold == 0 {
		cfg.Search.DedupThreshold = 0.7
	}
	if cfg.Search.MaxDiverse == 0 {
		cfg.Search.MaxDiverse = 200
	}
	if cfg.Search.VectorTimeoutSeconds == 0 {
		cfg.Search.VectorTimeoutSeconds = 15
	}
	if cfg.Schema.MaxTables == 0 {
		cfg.Schema.MaxTables = 10
	}
	if cfg.Context.MaxTokens == 0 {
		cfg.Context.MaxTokens = 800000
	}
	if cfg.Context.RewriteConfidence == 0 {
		cfg.Context.RewriteConfidence = 0.6
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".sql", ".csv", ".xlsx"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
