package ranking

import (
	"testing"

	"github.com/queryscout/queryscout/internal/models"
)

func result(id, content string) *models.ScoredResult {
	return &models.ScoredResult{Document: &models.Document{ID: id, Content: content}}
}

func TestJaccardSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"select from orders", "select from orders", 1.0},
		{"a b c d", "a b c e", 0.6}, // 3 shared of 5 union
		{"a b", "c d", 0},
		{"", "", 1.0},
		{"a", "", 0},
		{"SELECT From Orders", "select from orders", 1.0}, // case-insensitive
	}
	for _, c := range cases {
		got := JaccardSimilarity(c.a, c.b)
		if got != c.want {
			t.Errorf("JaccardSimilarity(%q, %q) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
}

func TestDeduplicate_RemovesNearDuplicates(t *testing.T) {
	in := []*models.ScoredResult{
		result("a", "SELECT o.id, c.name FROM orders o JOIN customers c ON o.customer_id = c.id"),
		result("b", "SELECT o.id, c.name FROM orders o JOIN customers c ON o.customer_id = c.id LIMIT 10"),
		result("c", "SELECT region, COUNT(*) FROM shipments GROUP BY region"),
	}
	out := Deduplicate(in, 0.7)
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if out[0].Document.ID != "a" {
		t.Errorf("higher-ranked copy should survive, got %s", out[0].Document.ID)
	}
	if out[1].Document.ID != "c" {
		t.Errorf("distinct document should survive, got %s", out[1].Document.ID)
	}
}

func TestDeduplicate_ThresholdIsStrict(t *testing.T) {
	// Word sets {a b c d} vs {a b c e}: similarity exactly 0.6.
	in := []*models.ScoredResult{
		result("x", "a b c d"),
		result("y", "a b c e"),
	}
	out := Deduplicate(in, 0.6)
	if len(out) != 2 {
		t.Errorf("similarity exactly at threshold must be kept, got %d survivors", len(out))
	}
	// Just below the pair's similarity: now removed.
	out = Deduplicate(in, 0.59)
	if len(out) != 1 {
		t.Errorf("similarity above threshold must be removed, got %d survivors", len(out))
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	in := []*models.ScoredResult{
		result("a", "select id from orders"),
		result("b", "select id from orders limit 5"),
		result("c", "select count(*) from users"),
	}
	once := Deduplicate(in, 0.7)
	twice := Deduplicate(once, 0.7)
	if len(once) != len(twice) {
		t.Fatalf("second pass removed documents: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Document.ID != twice[i].Document.ID {
			t.Errorf("order changed at %d: %s vs %s", i, once[i].Document.ID, twice[i].Document.ID)
		}
	}
}

func TestDeduplicate_SmallInputs(t *testing.T) {
	if out := Deduplicate(nil, 0.7); len(out) != 0 {
		t.Error("nil input should return empty")
	}
	one := []*models.ScoredResult{result("a", "select 1")}
	if out := Deduplicate(one, 0.7); len(out) != 1 {
		t.Error("single input should pass through")
	}
}
