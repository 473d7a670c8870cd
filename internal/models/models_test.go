package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNewSearchWeights_Normalizes(t *testing.T) {
	cases := []struct {
		vector, keyword float64
	}{
		{0.7, 0.3},
		{7, 3},
		{1, 1},
		{0.5, 0},
		{0, 2},
	}
	for _, c := range cases {
		w := NewSearchWeights(c.vector, c.keyword)
		if sum := w.Vector + w.Keyword; math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("NewSearchWeights(%v, %v): sum = %f, want 1.0", c.vector, c.keyword, sum)
		}
	}
}

func TestNewSearchWeights_Fallback(t *testing.T) {
	w := NewSearchWeights(0, 0)
	if w != DefaultSearchWeights() {
		t.Errorf("zero weights should fall back to default, got %+v", w)
	}
	w = NewSearchWeights(-1, -2)
	if w != DefaultSearchWeights() {
		t.Errorf("negative weights should fall back to default, got %+v", w)
	}
}

func TestMetadata_JSONRoundTrip(t *testing.T) {
	in := `{"source":"corpus.sql","description":"daily orders","tables":["orders","customers"],"joins":["orders-customers","orders-items"],"chunk_index":2,"team":"analytics","priority":5}`
	var m Metadata
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatal(err)
	}
	if m.Source != "corpus.sql" || m.Description != "daily orders" {
		t.Errorf("known fields not lifted: %+v", m)
	}
	if len(m.Tables) != 2 || m.Tables[0] != "orders" {
		t.Errorf("tables not parsed: %v", m.Tables)
	}
	if len(m.Joins) != 2 || m.Joins[0] != "orders-customers" {
		t.Errorf("joins not parsed: %v", m.Joins)
	}
	if m.ChunkIndex != 2 {
		t.Errorf("chunk_index = %d, want 2", m.ChunkIndex)
	}
	if m.Extra["team"] != "analytics" {
		t.Errorf("unknown key should land in Extra, got %v", m.Extra)
	}
	if _, known := m.Extra["source"]; known {
		t.Error("known key should not duplicate into Extra")
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var m2 Metadata
	if err := json.Unmarshal(out, &m2); err != nil {
		t.Fatal(err)
	}
	if m2.Source != m.Source || m2.Extra["team"] != "analytics" {
		t.Errorf("round trip lost data: %+v", m2)
	}
	if len(m2.Joins) != 2 || m2.Joins[1] != "orders-items" {
		t.Errorf("joins lost in round trip: %v", m2.Joins)
	}
}

func TestMetadata_TableList(t *testing.T) {
	m := Metadata{Table: "orders", Tables: []string{"customers", "orders"}}
	got := m.TableList()
	if len(got) != 2 {
		t.Fatalf("expected singular+plural merged without duplicate, got %v", got)
	}
	if got[0] != "orders" || got[1] != "customers" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestAskRequest_Validate(t *testing.T) {
	r := &AskRequest{}
	if err := r.Validate(); err == nil {
		t.Error("empty question should error")
	}
	r = &AskRequest{Question: "q"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.K != 10 {
		t.Errorf("default K = %d, want 10", r.K)
	}
	r = &AskRequest{Question: "q", K: 1000}
	_ = r.Validate()
	if r.K != 200 {
		t.Errorf("K should cap at 200, got %d", r.K)
	}
}
