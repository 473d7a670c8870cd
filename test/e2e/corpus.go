// Package e2e provides end-to-end tests over a generated SQL query corpus.
package e2e

import (
	"fmt"
	"strings"

	"github.com/queryscout/queryscout/internal/models"
)

// CorpusQuery is one SQL query in the generated corpus. Each query carries a
// signature table name that appears in no other query, so test cases can
// assert the right document comes back.
type CorpusQuery struct {
	ID          string
	SQL         string
	Description string
	Tables      []string
}

// QueryTestCase is a natural-language question and the document ID(s) of
// which at least one must appear in the results.
type QueryTestCase struct {
	Query          string
	ExpectedDocIDs []string
	Description    string
}

// Corpus holds the generated queries and test cases.
type Corpus struct {
	Queries   []CorpusQuery
	TestCases []QueryTestCase
}

type corpusTopic struct {
	table       string
	sql         string
	description string
	question    string
	tables      []string
}

var corpusTopics = []corpusTopic{
	{"orders", "SELECT o.id, o.total FROM orders o WHERE o.status = 'shipped'", "shipped orders with totals", "shipped orders totals", []string{"orders"}},
	{"customers", "SELECT c.id, c.name, c.email FROM customers c WHERE c.active = 1", "active customer contact details", "active customers email", []string{"customers"}},
	{"invoices", "SELECT i.number, SUM(i.amount) FROM invoices i GROUP BY i.number", "invoice amounts grouped by number", "invoice amounts grouped", []string{"invoices"}},
	{"shipments", "SELECT s.tracking_code, s.carrier FROM shipments s WHERE s.delivered_at IS NULL", "undelivered shipments by carrier", "undelivered shipments carrier", []string{"shipments"}},
	{"products", "SELECT p.sku, p.price FROM products p WHERE p.stock < 10", "low stock products", "low stock products sku", []string{"products"}},
	{"payments", "SELECT pm.method, COUNT(*) FROM payments pm GROUP BY pm.method", "payment counts by method", "payment counts by method", []string{"payments"}},
	{"refunds", "SELECT r.reason, AVG(r.amount) FROM refunds r GROUP BY r.reason", "average refund amount per reason", "average refund amount reason", []string{"refunds"}},
	{"suppliers", "SELECT su.name FROM suppliers su JOIN products p ON p.supplier_id = su.id WHERE p.discontinued = 0", "suppliers of live products", "suppliers live products", []string{"suppliers", "products"}},
	{"warehouses", "SELECT w.code, SUM(st.quantity) FROM warehouses w JOIN stock st ON st.warehouse_id = w.id GROUP BY w.code", "stock totals per warehouse", "stock totals per warehouse", []string{"warehouses", "stock"}},
	{"employees", "SELECT e.name, e.department FROM employees e WHERE e.hired_at > '2024-01-01'", "recent employee hires by department", "recent employee hires department", []string{"employees"}},
	{"departments", "SELECT d.name, COUNT(e.id) FROM departments d LEFT JOIN employees e ON e.department_id = d.id GROUP BY d.name", "headcount per department", "headcount per department", []string{"departments", "employees"}},
	{"sessions", "SELECT se.user_id, MAX(se.started_at) FROM sessions se GROUP BY se.user_id", "latest session per user", "latest session per user", []string{"sessions"}},
	{"subscriptions", "SELECT sb.plan, COUNT(*) FROM subscriptions sb WHERE sb.cancelled_at IS NULL GROUP BY sb.plan", "active subscription counts per plan", "active subscription counts plan", []string{"subscriptions"}},
	{"coupons", "SELECT cp.code, cp.discount FROM coupons cp WHERE cp.expires_at > CURRENT_DATE", "valid coupon codes and discounts", "valid coupon codes discounts", []string{"coupons"}},
	{"reviews", "SELECT rv.product_id, AVG(rv.rating) FROM reviews rv GROUP BY rv.product_id HAVING AVG(rv.rating) < 3", "poorly rated products", "poorly rated products reviews", []string{"reviews"}},
	{"categories", "SELECT cat.name, COUNT(p.id) FROM categories cat JOIN products p ON p.category_id = cat.id GROUP BY cat.name", "product counts per category", "product counts per category", []string{"categories", "products"}},
	{"returns", "SELECT rt.order_id, rt.reason FROM returns rt WHERE rt.created_at > DATE('now', '-30 day')", "recent product returns with reasons", "recent product returns reasons", []string{"returns"}},
	{"audits", "SELECT au.actor, au.action, au.created_at FROM audits au ORDER BY au.created_at DESC LIMIT 100", "latest audit trail entries", "latest audit trail entries", []string{"audits"}},
	{"campaigns", "SELECT cg.name, SUM(cg.spend) FROM campaigns cg GROUP BY cg.name ORDER BY SUM(cg.spend) DESC", "marketing campaign spend ranking", "marketing campaign spend ranking", []string{"campaigns"}},
	{"tickets", "SELECT tk.priority, COUNT(*) FROM tickets tk WHERE tk.closed_at IS NULL GROUP BY tk.priority", "open support tickets by priority", "open support tickets priority", []string{"tickets"}},
}

// BuildCorpus generates n corpus queries by cycling the topics, and a test
// case for every distinct topic.
func BuildCorpus(n int) *Corpus {
	queries := make([]CorpusQuery, 0, n)
	for i := 0; i < n; i++ {
		t := corpusTopics[i%len(corpusTopics)]
		id := fmt.Sprintf("e2e-query-%03d", i+1)
		sql := t.sql
		desc := t.description
		if i >= len(corpusTopics) {
			// Repeated topics get a distinct variant so dedup does not fold them
			// into the originals.
			sql = strings.Replace(t.sql, "SELECT", fmt.Sprintf("SELECT /* variant %d */", i), 1)
			desc = fmt.Sprintf("%s (variant %d)", t.description, i)
		}
		queries = append(queries, CorpusQuery{ID: id, SQL: sql, Description: desc, Tables: t.tables})
	}

	cases := make([]QueryTestCase, 0, len(corpusTopics))
	for i, t := range corpusTopics {
		if i >= n {
			break
		}
		expected := []string{queries[i].ID}
		for j := len(corpusTopics) + i; j < n; j += len(corpusTopics) {
			expected = append(expected, queries[j].ID)
		}
		cases = append(cases, QueryTestCase{
			Query:          t.question,
			ExpectedDocIDs: expected,
			Description:    fmt.Sprintf("question about %s", t.table),
		})
	}
	return &Corpus{Queries: queries, TestCases: cases}
}

// ToDocumentInputs converts the corpus queries into indexable documents.
func (c *Corpus) ToDocumentInputs() []*models.DocumentInput {
	out := make([]*models.DocumentInput, len(c.Queries))
	for i := range c.Queries {
		q := &c.Queries[i]
		out[i] = &models.DocumentInput{
			ID:      q.ID,
			Content: q.SQL,
			Metadata: models.Metadata{
				Description: q.Description,
				Tables:      q.Tables,
			},
		}
	}
	return out
}
