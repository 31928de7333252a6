package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestGraphClientFormTokenPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v18.0/page-1/feed" {
			t.Errorf("path = %s, want /v18.0/page-1/feed", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
			return
		}
		if r.PostForm.Get("message") != "hello" {
			t.Errorf("message = %q, want hello", r.PostForm.Get("message"))
		}
		if r.PostForm.Get("access_token") != "secret" {
			t.Errorf("access_token = %q, want secret", r.PostForm.Get("access_token"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("form-token client should not send an Authorization header")
		}
		w.Write([]byte(`{"id":"page-1_42"}`))
	}))
	defer server.Close()

	g := NewGraphClient(server.URL, "v18.0", "secret", AuthFormToken, time.Second, 0)
	resp := g.Call(context.Background(), http.MethodPost, "/page-1/feed", map[string]string{"message": "hello"})

	if resp.Err != nil {
		t.Fatalf("Call() error = %v", resp.Err)
	}
	if resp.ID != "page-1_42" {
		t.Errorf("ID = %q, want page-1_42", resp.ID)
	}
}

func TestGraphClientBearerJSONPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding body: %v", err)
			return
		}
		if payload["media_type"] != "IMAGE" {
			t.Errorf("media_type = %q, want IMAGE", payload["media_type"])
		}
		if _, ok := payload["access_token"]; ok {
			t.Error("bearer client should not send access_token in the body")
		}
		w.Write([]byte(`{"id":"c-1"}`))
	}))
	defer server.Close()

	g := NewGraphClient(server.URL, "v19.0", "secret", AuthBearer, time.Second, 0)
	resp := g.Call(context.Background(), http.MethodPost, "/acct/media", map[string]string{"media_type": "IMAGE"})
	if resp.Err != nil {
		t.Fatalf("Call() error = %v", resp.Err)
	}
	if resp.ID != "c-1" {
		t.Errorf("ID = %q, want c-1", resp.ID)
	}
}

func TestGraphClientFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "graph error body",
			status:     http.StatusBadRequest,
			body:       `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid OAuth access token.",
		},
		{
			name:       "plain error body",
			status:     http.StatusBadGateway,
			body:       "upstream down",
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			g := NewGraphClient(server.URL, "v18.0", "secret", AuthFormToken, time.Second, 0)
			resp := g.Call(context.Background(), http.MethodPost, "/p/feed", nil)

			var httpErr *HTTPError
			if !errors.As(resp.Err, &httpErr) {
				t.Fatalf("Call() error = %v, want *HTTPError", resp.Err)
			}
			if httpErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(httpErr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", httpErr.Message, tt.wantMsg)
			}
			if strings.Contains(httpErr.Error(), "secret") {
				t.Errorf("error leaks the token: %v", httpErr)
			}
		})
	}
}

func TestGraphErrorMessageTruncatesByRune(t *testing.T) {
	body := []byte(strings.Repeat("பிழை", 100))

	msg := graphErrorMessage(body)
	if !utf8.ValidString(msg) {
		t.Errorf("graphErrorMessage() split a character: %q", msg)
	}
	if n := utf8.RuneCountInString(msg); n != 200 {
		t.Errorf("graphErrorMessage() has %d runes, want 200", n)
	}
}

func TestGraphClientMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":`))
	}))
	defer server.Close()

	g := NewGraphClient(server.URL, "", "secret", AuthBearer, time.Second, 0)
	resp := g.Call(context.Background(), http.MethodPost, "/x", nil)
	if resp.Err == nil {
		t.Fatal("Call() expected error for malformed JSON")
	}
	if resp.ID != "" {
		t.Errorf("ID = %q, want empty", resp.ID)
	}
}

func TestGraphClientTransportErrorRedactsToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	g := NewGraphClient(base, "v18.0", "secret", AuthFormToken, time.Second, 0)
	resp := g.Call(context.Background(), http.MethodGet, "/acct/insights", map[string]string{"metric": "reach"})
	if resp.Err == nil {
		t.Fatal("Call() expected transport error")
	}
	if strings.Contains(resp.Err.Error(), "secret") {
		t.Errorf("transport error leaks the token: %v", resp.Err)
	}
}

func TestGraphClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	g := NewGraphClient(server.URL, "v18.0", "secret", AuthFormToken, 50*time.Millisecond, 0)
	resp := g.Call(context.Background(), http.MethodPost, "/p/feed", nil)
	if resp.Err == nil {
		t.Fatal("Call() expected timeout error")
	}
}

func TestGraphClientSpacesCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	g := NewGraphClient(server.URL, "", "secret", AuthBearer, time.Second, 100*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if resp := g.Call(context.Background(), http.MethodPost, "/x", nil); resp.Err != nil {
			t.Fatalf("Call() error = %v", resp.Err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("3 calls took %v, want them spaced by ~100ms", elapsed)
	}
}

func TestGraphClientCancelledContext(t *testing.T) {
	g := NewGraphClient("http://127.0.0.1:0", "", "secret", AuthBearer, time.Second, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if resp := g.Call(ctx, http.MethodPost, "/x", nil); resp.Err == nil {
		t.Fatal("Call() expected error for cancelled context")
	}
}
