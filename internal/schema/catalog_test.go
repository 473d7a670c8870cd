package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalog(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	content := "table,column,datatype,qualified_name\n" + rows
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	path := writeCatalog(t, strings.Join([]string{
		"orders,id,bigint,sales.orders",
		"orders,customer_id,bigint,sales.orders",
		"orders,total,numeric,sales.orders",
		"customers,id,bigint,sales.customers",
		"customers,name,text,sales.customers",
		"invoices,id,bigint,billing.invoices",
		"invoices,amount,numeric,billing.invoices",
	}, "\n") + "\n")
	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return m
}

func TestNewManager_MissingFile(t *testing.T) {
	if _, err := NewManager(filepath.Join(t.TempDir(), "nope.csv"), nil); err == nil {
		t.Error("missing catalog file should fail at construction")
	}
}

func TestNewManager_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.txt")
	os.WriteFile(path, []byte("orders,id,bigint\n"), 0644)
	if _, err := NewManager(path, nil); err == nil {
		t.Error("unsupported format should fail")
	}
}

func TestNormalizeTableName(t *testing.T) {
	cases := map[string]string{
		"orders":                    "orders",
		"sales.orders":              "orders",
		`"sales"."Daily_Revenue"`:   "daily_revenue",
		"`analytics`.`events`":      "events",
		"  [dbo].[Users]  ":         "users",
		"warehouse.sales.snapshots": "snapshots",
	}
	for in, want := range cases {
		if got := NormalizeTableName(in); got != want {
			t.Errorf("NormalizeTableName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelevantSchema_Formatting(t *testing.T) {
	m := testManager(t)
	res := m.RelevantSchema([]string{"orders"}, 10)

	if len(res.TablesFound) != 1 || res.TablesFound[0] != "orders" {
		t.Fatalf("tables found = %v", res.TablesFound)
	}
	if !strings.Contains(res.Schema, "sales.orders:") {
		t.Errorf("schema should use the qualified name:\n%s", res.Schema)
	}
	if !strings.Contains(res.Schema, "  customer_id (bigint)") {
		t.Errorf("schema should list indented columns with datatypes:\n%s", res.Schema)
	}
}

func TestRelevantSchema_CapAndDedup(t *testing.T) {
	m := testManager(t)
	res := m.RelevantSchema([]string{"orders", "ORDERS", "customers", "invoices"}, 2)
	if got := len(res.TablesFound) + len(res.TablesNotFound); got > 2 {
		t.Errorf("cap of 2 produced %d tables", got)
	}
	if len(res.TablesFound) != 2 {
		t.Errorf("tables found = %v, want orders and customers", res.TablesFound)
	}
	if strings.Contains(res.Schema, "invoices") {
		t.Error("capped-out table leaked into schema text")
	}
}

func TestRelevantSchema_NotFoundIsNotAnError(t *testing.T) {
	m := testManager(t)
	res := m.RelevantSchema([]string{"orders", "shipments"}, 10)
	if len(res.TablesNotFound) != 1 || res.TablesNotFound[0] != "shipments" {
		t.Errorf("tables not found = %v", res.TablesNotFound)
	}
	if len(res.TablesFound) != 1 {
		t.Errorf("tables found = %v", res.TablesFound)
	}
}

func TestRelevantSchema_EmptyInput(t *testing.T) {
	m := testManager(t)
	res := m.RelevantSchema(nil, 10)
	if res.Schema != "" || len(res.TablesFound) != 0 {
		t.Errorf("empty input should yield empty schema, got %+v", res)
	}
}

func TestHasTableAndColumn(t *testing.T) {
	m := testManager(t)
	if !m.HasTable("sales.orders") {
		t.Error("qualified lookup should resolve through normalization")
	}
	if m.HasTable("shipments") {
		t.Error("unknown table reported as known")
	}
	if !m.HasColumn("orders", "total") {
		t.Error("known column reported as missing")
	}
	if m.HasColumn("orders", "discount") {
		t.Error("unknown column reported as known")
	}
}

func TestSuggestTables(t *testing.T) {
	m := testManager(t)
	got := m.SuggestTables("custmers", 3)
	if len(got) == 0 || got[0] != "customers" {
		t.Errorf("SuggestTables(custmers) = %v, want [customers ...]", got)
	}
	if got := m.SuggestTables("zzzzzz", 3); len(got) != 0 {
		t.Errorf("no near-misses expected, got %v", got)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"orders", "orders", 0},
		{"orders", "order", 1},
		{"custmers", "customers", 1},
		{"", "abc", 3},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
