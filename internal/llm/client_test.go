package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quillhq/mailbrief/internal/config"
)

func TestCompleteSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  [] \n"}}]}`))
	}))
	defer srv.Close()

	c := New(config.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL}, "test-model")
	out, err := c.Complete(Request{System: "be brief", Prompt: "hello", MaxTokens: 100, Temperature: 0.2})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "[]" {
		t.Fatalf("out = %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	msgs := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Fatalf("system message = %v", first)
	}
}

func TestCompleteOmitsEmptySystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if n := len(body["messages"].([]any)); n != 1 {
			t.Errorf("messages = %d, want 1", n)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := New(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, "m")
	if _, err := c.Complete(Request{Prompt: "hello"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, "m")
	_, err := c.Complete(Request{Prompt: "hello"})
	if err == nil || !strings.Contains(err.Error(), "model http 429") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, "m")
	if _, err := c.Complete(Request{Prompt: "hello"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteMissingCredentials(t *testing.T) {
	tests := []struct {
		name     string
		provider config.ProviderConfig
		model    string
	}{
		{"no api key", config.ProviderConfig{BaseURL: "http://localhost"}, "m"},
		{"no base url", config.ProviderConfig{APIKey: "k"}, "m"},
		{"no model", config.ProviderConfig{APIKey: "k", BaseURL: "http://localhost"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.provider, tt.model)
			if _, err := c.Complete(Request{Prompt: "hello"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
