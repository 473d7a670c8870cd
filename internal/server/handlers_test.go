package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/queryscout/queryscout/internal/config"
	"github.com/queryscout/queryscout/internal/embedding"
	"github.com/queryscout/queryscout/internal/indexer"
	"github.com/queryscout/queryscout/internal/keyword"
	"github.com/queryscout/queryscout/internal/llm"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/rag"
	"github.com/queryscout/queryscout/internal/retriever"
	"github.com/queryscout/queryscout/internal/schema"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/vector"
)

func testServer(t *testing.T, client llm.Client) (*Server, *indexer.Indexer) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := embedding.NewMockEmbedder(8)
	vecIdx, _ := vector.NewMemoryIndex(8)
	kwIdx, err := keyword.NewBleveIndex(filepath.Join(dir, "kw.bleve"))
	if err != nil {
		t.Fatalf("keyword index: %v", err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	catalogPath := filepath.Join(dir, "catalog.csv")
	catalogContent := "table,column,datatype\norders,id,bigint\norders,total,numeric\ncustomers,id,bigint\n"
	if err := os.WriteFile(catalogPath, []byte(catalogContent), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	catalog, err := schema.NewManager(catalogPath, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: 0}
	cfg.Search = config.SearchConfig{
		TopK: 20, VectorWeight: 0.7, KeywordWeight: 0.3,
		LexicalVectorWeight: 0.4, SemanticVectorWeight: 0.85,
		DedupThreshold: 0.7, MaxDiverse: 200, VectorTimeoutSeconds: 5,
	}
	cfg.Schema = config.SchemaConfig{MaxTables: 10}
	cfg.Context = config.ContextConfig{MaxTokens: 100000}
	cfg.LLM = config.LLMConfig{MaxRetries: 1, RetryBaseDelayMS: 1}

	ret := retriever.New(store, embedder, vecIdx, kwIdx, &cfg.Search, nil)
	engine, err := rag.NewEngine(rag.Options{
		Retriever: ret,
		Client:    client,
		Catalog:   catalog,
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	ix := indexer.New(store, embedder, vecIdx, kwIdx, nil)

	srv := NewServer(Options{
		Engine:    engine,
		Retriever: ret,
		Indexer:   ix,
		Storage:   store,
		Catalog:   catalog,
		Config:    cfg,
	})
	return srv, ix
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	router := srv.Router()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHandleIndexAndGetDocument(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	router := srv.Router()

	w := postJSON(t, router, "/api/v1/documents", &models.DocumentInput{
		ID:      "doc-1",
		Content: "SELECT * FROM orders",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("index status = %d: %s", w.Code, w.Body.String())
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil)
	get := httptest.NewRecorder()
	router.ServeHTTP(get, r)
	if get.Code != http.StatusOK {
		t.Fatalf("get status = %d", get.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(get.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Content != "SELECT * FROM orders" {
		t.Errorf("content = %q", doc.Content)
	}
}

func TestHandleIndexDocument_EmptyContent(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	w := postJSON(t, srv.Router(), "/api/v1/documents", &models.DocumentInput{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	srv, ix := testServer(t, &llm.MockClient{})
	router := srv.Router()

	doc, err := ix.IndexDocument(context.Background(), &models.DocumentInput{Content: "SELECT 1 FROM t"})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	get := httptest.NewRecorder()
	router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil))
	if get.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", get.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, ix := testServer(t, &llm.MockClient{})
	router := srv.Router()

	for i, content := range []string{
		"SELECT customer_id FROM orders GROUP BY customer_id",
		"SELECT SUM(total) FROM invoices",
	} {
		if _, err := ix.IndexDocument(context.Background(), &models.DocumentInput{
			ID:      []string{"d1", "d2"}[i],
			Content: content,
		}); err != nil {
			t.Fatalf("index: %v", err)
		}
	}

	w := postJSON(t, router, "/api/v1/search", &models.SearchRequest{Query: "orders by customer", K: 5})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total == 0 {
		t.Error("expected results")
	}
	if resp.Method == "" {
		t.Error("method missing from response")
	}
}

func TestHandleSearch_EmptyQuery(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	w := postJSON(t, srv.Router(), "/api/v1/search", &models.SearchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	srv, ix := testServer(t, &llm.MockClient{Responses: []string{"the answer"}})
	router := srv.Router()

	if _, err := ix.IndexDocument(context.Background(), &models.DocumentInput{
		Content: "SELECT * FROM orders",
	}); err != nil {
		t.Fatalf("index: %v", err)
	}

	w := postJSON(t, router, "/api/v1/ask", &models.AskRequest{Question: "how do we query orders?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "the answer" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Usage == nil || resp.Usage.SearchMethod == "" {
		t.Error("usage payload incomplete")
	}
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	w := postJSON(t, srv.Router(), "/api/v1/ask", &models.AskRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleSchemaTables(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	r := httptest.NewRequest(http.MethodGet, "/api/v1/schema/tables", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Tables []string `json:"tables"`
		Count  int      `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if !strings.Contains(strings.Join(resp.Tables, ","), "orders") {
		t.Errorf("tables = %v", resp.Tables)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, ix := testServer(t, &llm.MockClient{})
	if _, err := ix.IndexDocument(context.Background(), &models.DocumentInput{Content: "SELECT 1 FROM t"}); err != nil {
		t.Fatalf("index: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["documents"].(float64) != 1 {
		t.Errorf("documents = %v", resp["documents"])
	}
	if resp["schema_catalog"] != true {
		t.Error("schema_catalog flag missing")
	}
}
