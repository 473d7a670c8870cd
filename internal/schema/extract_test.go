package schema

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/queryscout/queryscout/internal/llm"
)

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestExtractTables_Basic(t *testing.T) {
	cases := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM orders", []string{"orders"}},
		{"SELECT * FROM sales.orders o JOIN customers c ON c.id = o.customer_id", []string{"customers", "orders"}},
		{"UPDATE invoices SET paid = true", []string{"invoices"}},
		{"INSERT INTO audit_log (event) VALUES ('x')", []string{"audit_log"}},
		{"DELETE FROM sessions WHERE expired", []string{"sessions"}},
		{"SELECT 1", nil},
	}
	for _, c := range cases {
		got := ExtractTables(c.sql)
		if !reflect.DeepEqual(sorted(got), sorted(c.want)) {
			t.Errorf("ExtractTables(%q) = %v, want %v", c.sql, got, c.want)
		}
	}
}

func TestExtractTables_ExcludesCTEAliases(t *testing.T) {
	got := ExtractTables("WITH recent AS (SELECT * FROM orders) SELECT * FROM recent")
	if !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("got %v, want [orders]", got)
	}
}

func TestExtractTables_MultipleCTEs(t *testing.T) {
	sql := `WITH recent AS (
		SELECT * FROM orders WHERE created_at > now() - interval '7 days'
	), totals AS (
		SELECT customer_id, SUM(total) FROM recent GROUP BY customer_id
	)
	SELECT c.name, t.sum FROM totals t JOIN customers c ON c.id = t.customer_id`

	got := sorted(ExtractTables(sql))
	want := []string{"customers", "orders"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractTables_RecursiveCTE(t *testing.T) {
	sql := `WITH RECURSIVE tree AS (
		SELECT id, parent_id FROM categories WHERE parent_id IS NULL
		UNION ALL
		SELECT c.id, c.parent_id FROM categories c JOIN tree ON tree.id = c.parent_id
	) SELECT * FROM tree`

	got := ExtractTables(sql)
	if !reflect.DeepEqual(got, []string{"categories"}) {
		t.Errorf("got %v, want [categories]", got)
	}
}

func TestExtractTables_NestedParensInCTEBody(t *testing.T) {
	sql := `WITH top AS (
		SELECT * FROM orders WHERE total > (SELECT AVG(total) FROM orders)
	) SELECT * FROM top JOIN customers ON true`

	got := sorted(ExtractTables(sql))
	want := []string{"customers", "orders"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractTables_TablesLine(t *testing.T) {
	got := sorted(ExtractTables("Monthly revenue report.\nTables: invoices, payments"))
	want := []string{"invoices", "payments"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLooksLikeSQL(t *testing.T) {
	if !LooksLikeSQL("SELECT * FROM t") {
		t.Error("select statement not recognized as SQL")
	}
	if LooksLikeSQL("show me the revenue numbers") {
		t.Error("prose recognized as SQL")
	}
}

func TestLLMExtractor(t *testing.T) {
	client := &llm.MockClient{Responses: []string{`["orders", "sales.customers", "orders"]`}}
	e := NewLLMExtractor(client, nil)

	got, err := e.ExtractTables(context.Background(), "SELECT ...")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []string{"orders", "customers"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLLMExtractor_CodeFence(t *testing.T) {
	client := &llm.MockClient{Responses: []string{"```json\n[\"orders\"]\n```"}}
	e := NewLLMExtractor(client, nil)

	got, err := e.ExtractTables(context.Background(), "SELECT ...")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("got %v", got)
	}
}

func TestFallbackExtractor_PrimaryFailure(t *testing.T) {
	client := &llm.MockClient{Errors: []error{errors.New("model down")}}
	e := NewFallbackExtractor(NewLLMExtractor(client, nil), nil)

	got, err := e.ExtractTables(context.Background(), "SELECT * FROM orders")
	if err != nil {
		t.Fatalf("fallback should absorb the failure: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("got %v, want [orders]", got)
	}
	if client.Calls() != 1 {
		t.Errorf("primary called %d times, want 1", client.Calls())
	}
}

func TestFallbackExtractor_ProseSkipsPrimary(t *testing.T) {
	client := &llm.MockClient{Responses: []string{`["wrong"]`}}
	e := NewFallbackExtractor(NewLLMExtractor(client, nil), nil)

	got, err := e.ExtractTables(context.Background(), "Tables: orders")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("got %v, want [orders]", got)
	}
	if client.Calls() != 0 {
		t.Errorf("prose input should not call the model, calls = %d", client.Calls())
	}
}
