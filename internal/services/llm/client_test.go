package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatResponse(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q},"finish_reason":"stop"}]}`, content)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(
		Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model", RetryAttempts: 3},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
}

func TestCompleteJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		fmt.Fprint(w, chatResponse(`{"title":"opening"}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if !strings.Contains(content, "opening") {
		t.Errorf("content = %q", content)
	}
}

func TestCompleteJSONRetriesServerError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chatResponse(`{"ok":true}`))
	})

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
}

func TestCompleteJSONDoesNotRetryClientError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error on 400")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (no retry on 4xx)", calls)
	}
}

func TestCompleteJSONRetriesEmptyContent(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"choices":[{"message":{"content":""},"finish_reason":"stop"}]}`)
			return
		}
		fmt.Fprint(w, chatResponse(`{"ok":true}`))
	})

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestCompleteJSONRequiresPrompts(t *testing.T) {
	client := NewClient(Config{APIKey: "key", Model: "model"})
	if _, err := client.CompleteJSON(context.Background(), "", "user"); err == nil {
		t.Error("accepted empty system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", ""); err == nil {
		t.Error("accepted empty user prompt")
	}
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse(`{"ok":true}`))
	})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"clean object", `{"title":"t"}`, false},
		{"code fence", "```json\n{\"title\":\"t\"}\n```", false},
		{"prose around object", `Here is the JSON: {"title":"t"} hope that helps`, false},
		{"empty", "", true},
		{"not json", "no structure here", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var target struct {
				Title string `json:"title"`
			}
			err := DecodeLLMJSON(tc.payload, &target)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeLLMJSON failed: %v", err)
			}
			if target.Title != "t" {
				t.Errorf("title = %q", target.Title)
			}
		})
	}
}
