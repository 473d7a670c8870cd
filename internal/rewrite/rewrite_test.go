package rewrite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/queryscout/queryscout/internal/llm"
)

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
}

func TestRewrite_AdoptsHighConfidence(t *testing.T) {
	client := &llm.MockClient{Responses: []string{
		`{"rewritten_query": "orders joined with customers SQL", "confidence": 0.9}`,
	}}
	r := New(client, 0.6, fastRetry(), nil)

	res := r.Rewrite(context.Background(), "show me order customer joins")
	if !res.Adopted {
		t.Fatal("high-confidence rewrite should be adopted")
	}
	if res.Query() != "orders joined with customers SQL" {
		t.Errorf("Query() = %q", res.Query())
	}
}

func TestRewrite_ConfidenceGate(t *testing.T) {
	cases := []struct {
		confidence float64
		adopted    bool
	}{
		{0.59, false},
		{0.60, true},
		{0.61, true},
	}
	for _, c := range cases {
		client := &llm.MockClient{Responses: []string{
			fmt.Sprintf(`{"rewritten_query": "better query", "confidence": %.2f}`, c.confidence),
		}}
		r := New(client, 0.6, fastRetry(), nil)
		res := r.Rewrite(context.Background(), "original question")
		if res.Adopted != c.adopted {
			t.Errorf("confidence %.2f: adopted = %v, want %v", c.confidence, res.Adopted, c.adopted)
		}
		if !c.adopted && res.Query() != "original question" {
			t.Errorf("confidence %.2f: Query() = %q, want the original", c.confidence, res.Query())
		}
	}
}

func TestRewrite_CallFailureKeepsOriginal(t *testing.T) {
	client := &llm.MockClient{Errors: []error{
		errors.New("model down"),
		errors.New("model down"),
	}}
	r := New(client, 0.6, fastRetry(), nil)

	res := r.Rewrite(context.Background(), "original question")
	if res.Adopted {
		t.Error("failed rewrite must not be adopted")
	}
	if res.Err == "" {
		t.Error("failure should be recorded in the result")
	}
	if res.Query() != "original question" {
		t.Errorf("Query() = %q, want the original", res.Query())
	}
}

func TestRewrite_MalformedResponseKeepsOriginal(t *testing.T) {
	client := &llm.MockClient{Responses: []string{"sure, here is a better query!"}}
	r := New(client, 0.6, fastRetry(), nil)

	res := r.Rewrite(context.Background(), "original question")
	if res.Adopted {
		t.Error("unparseable rewrite must not be adopted")
	}
	if res.Err == "" {
		t.Error("parse failure should be recorded")
	}
}

func TestRewrite_CodeFencedResponse(t *testing.T) {
	client := &llm.MockClient{Responses: []string{
		"```json\n{\"rewritten_query\": \"fenced\", \"confidence\": 0.8}\n```",
	}}
	r := New(client, 0.6, fastRetry(), nil)

	res := r.Rewrite(context.Background(), "original")
	if !res.Adopted || res.Rewritten != "fenced" {
		t.Errorf("fenced JSON not handled: %+v", res)
	}
}

func TestRewrite_EmptyRewriteNotAdopted(t *testing.T) {
	client := &llm.MockClient{Responses: []string{
		`{"rewritten_query": "", "confidence": 0.95}`,
	}}
	r := New(client, 0.6, fastRetry(), nil)

	if res := r.Rewrite(context.Background(), "original"); res.Adopted {
		t.Error("empty rewrite must not be adopted")
	}
}

func TestRewrite_RetriesTransientFailure(t *testing.T) {
	client := &llm.MockClient{
		Errors:    []error{errors.New("transient"), nil},
		Responses: []string{"", `{"rewritten_query": "recovered", "confidence": 0.9}`},
	}
	r := New(client, 0.6, fastRetry(), nil)

	res := r.Rewrite(context.Background(), "original")
	if !res.Adopted || res.Rewritten != "recovered" {
		t.Errorf("retry should recover the rewrite: %+v", res)
	}
	if client.Calls() != 2 {
		t.Errorf("calls = %d, want 2", client.Calls())
	}
}
