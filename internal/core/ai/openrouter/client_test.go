package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"recipe-synthesizer/internal/core/ai/provider"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(provider.Config{
		APIKey:     "sk-test",
		Model:      "test/model",
		BaseURL:    url,
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	})
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Model != "test/model" || len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("unexpected body: %+v", body)
		}
		if body.ResponseFormat == nil || body.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format not set")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gen-1","model":"test/model","choices":[{"message":{"role":"assistant","content":"{\"recipes\":[]}"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	resp, err := c.Generate(context.Background(), &provider.Request{
		System:      "be terse",
		Messages:    []provider.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
		JSONOutput:  true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != `{"recipes":[]}` || resp.Usage.TotalTokens != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGenerateRateLimitedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Generate(context.Background(), &provider.Request{})
	var se *provider.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || se.RetryAfter != 7*time.Second {
		t.Fatalf("unexpected status error: %+v", se)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestGenerateServerErrorRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).Generate(context.Background(), &provider.Request{})
	var se *provider.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestGenerateEmbeddedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"provider overloaded","code":429}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Generate(context.Background(), &provider.Request{})
	var se *provider.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected embedded 429, got %v", err)
	}
}

func TestGenerateEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Generate(context.Background(), &provider.Request{})
	if !errors.Is(err, provider.ErrEmptyCompletion) {
		t.Fatalf("err = %v, want ErrEmptyCompletion", err)
	}
}
