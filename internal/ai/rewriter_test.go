package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whatsapp-broadcaster/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		OpenAIBaseURL: baseURL,
		OpenAIAPIKey:  "sk-test",
		OpenAIModel:   "gpt-4o-mini",
	}
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Olá Ana!") {
			t.Errorf("prompt missing original text: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Oi Ana, tudo bem?"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	got, err := c.Rewrite(context.Background(), "Olá Ana!")
	if err != nil {
		t.Fatalf("Rewrite error: %v", err)
	}
	if got != "Oi Ana, tudo bem?" {
		t.Fatalf("Rewrite = %q", got)
	}
}

func TestRewriteFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "quota error", status: http.StatusTooManyRequests, body: `{"error":"quota"}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":""}}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL))
			if _, err := c.Rewrite(context.Background(), "Olá!"); err == nil {
				t.Fatal("expected error, callers depend on it to fall back")
			}
		})
	}
}
