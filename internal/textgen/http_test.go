package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  TOPIC: work\n"}},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-4o-mini"})
	out, err := c.Complete(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "TOPIC: work" {
		t.Fatalf("Complete() = %q, want trimmed content", out)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "summarize this" {
		t.Fatalf("unexpected request payload: %+v", gotReq)
	}
}

func TestHTTPClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "hi")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Complete() error = %v, want StatusError", err)
	}
	if se.Status != http.StatusTooManyRequests {
		t.Fatalf("StatusError.Status = %d, want 429", se.Status)
	}
}

func TestHTTPClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL})
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatalf("Complete() expected error for empty choices")
	}
}

func TestNewFactoryModes(t *testing.T) {
	c, err := New(Config{Mode: "mock"})
	if err != nil {
		t.Fatalf("New(mock) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("New(mock) did not return a MockClient")
	}

	c, err = New(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("New(auto) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("New(auto) without key should fall back to mock")
	}

	c, err = New(Config{Mode: "auto", APIKey: "sk", BaseURL: "http://x"})
	if err != nil {
		t.Fatalf("New(auto) error = %v", err)
	}
	if _, ok := c.(*HTTPClient); !ok {
		t.Fatalf("New(auto) with key should return an HTTPClient")
	}

	if _, err := New(Config{Mode: "http", BaseURL: "http://x"}); err == nil {
		t.Fatalf("New(http) without key expected an error")
	}
	if _, err := New(Config{Mode: "wat"}); err == nil {
		t.Fatalf("New(wat) expected an error")
	}
}
