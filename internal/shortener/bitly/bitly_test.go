package bitly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linnemanlabs/go-core/log"
)

const longURL = "https://mail.google.com/mail/u/0/#search/Interview+invite"

func TestShorten_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["long_url"] != longURL {
			t.Errorf("long_url = %q, want %q", body["long_url"], longURL)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "https://bit.ly/abc123"})
	}))
	defer srv.Close()

	s := New("tok", log.Nop())
	s.endpoint = srv.URL

	if got := s.Shorten(context.Background(), longURL); got != "https://bit.ly/abc123" {
		t.Errorf("Shorten = %q, want short link", got)
	}
}

func TestShorten_NoTokenPassesThrough(t *testing.T) {
	t.Parallel()

	s := New("", log.Nop())
	if got := s.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want original", got)
	}
}

func TestShorten_ErrorStatusFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"FORBIDDEN"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	s := New("tok", log.Nop())
	s.endpoint = srv.URL

	if got := s.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want original on API error", got)
	}
}

func TestShorten_MissingLinkFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	s := New("tok", log.Nop())
	s.endpoint = srv.URL

	if got := s.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want original when link missing", got)
	}
}

func TestShorten_UnreachableFallsBack(t *testing.T) {
	t.Parallel()

	s := New("tok", log.Nop())
	s.endpoint = "http://127.0.0.1:1"

	if got := s.Shorten(context.Background(), longURL); got != longURL {
		t.Errorf("Shorten = %q, want original when unreachable", got)
	}
}
