package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

type fakeGmail struct {
	tokenCalls atomic.Int64
	lastQuery  string
	lastMax    string
	messages   map[string]string // id -> response JSON
	order      []string
}

func (f *fakeGmail) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		_, _ = fmt.Fprint(w, `{"access_token": "at-1", "expires_in": 3600}`)
	})

	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q", got)
		}
		f.lastQuery = r.URL.Query().Get("q")
		f.lastMax = r.URL.Query().Get("maxResults")

		type ref struct {
			ID string `json:"id"`
		}
		refs := make([]ref, 0, len(f.order))
		for _, id := range f.order {
			refs = append(refs, ref{ID: id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": refs})
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		body, ok := f.messages[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, body)
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeGmail) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c := New("cid", "secret", "rt", nil)
	c.tokenURL = srv.URL + "/token"
	c.apiBase = srv.URL + "/gmail/v1"
	return c
}

func TestFetch_ResolvesMessages(t *testing.T) {
	t.Parallel()

	f := &fakeGmail{
		order: []string{"m1", "m2"},
		messages: map[string]string{
			"m1": fmt.Sprintf(`{
				"id": "m1",
				"payload": {
					"mimeType": "text/plain",
					"headers": [
						{"name": "From", "value": "boss@example.com"},
						{"name": "Subject", "value": "Interview offer"},
						{"name": "Date", "value": "Tue, 10 Feb 2026 09:30:00 +0000"}
					],
					"body": {"data": %q}
				}
			}`, b64("Please reply today.")),
			"m2": fmt.Sprintf(`{
				"id": "m2",
				"payload": {
					"mimeType": "multipart/alternative",
					"headers": [{"name": "Subject", "value": "Newsletter"}],
					"parts": [
						{"mimeType": "text/html", "body": {"data": %q}},
						{"mimeType": "text/plain", "body": {"data": %q}}
					]
				}
			}`, b64("<p>ignored</p>"), b64("weekly digest")),
		},
	}
	c := newTestClient(t, f)

	msgs, err := c.Fetch(context.Background(), mail.Criteria{Unread: true, Limit: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	m1 := msgs[0]
	if m1.ID != "m1" || m1.Sender != "boss@example.com" || m1.Subject != "Interview offer" {
		t.Errorf("m1 = %+v", m1)
	}
	if m1.Body != "Please reply today." {
		t.Errorf("m1.Body = %q", m1.Body)
	}
	if m1.ReceivedAt != "Tue, 10 Feb 2026 09:30:00 +0000" {
		t.Errorf("m1.ReceivedAt = %q", m1.ReceivedAt)
	}
	if m1.Priority != mail.PriorityUnclassified {
		t.Errorf("m1.Priority = %q", m1.Priority)
	}

	m2 := msgs[1]
	if m2.Sender != "(Unknown)" {
		t.Errorf("missing From should default, got %q", m2.Sender)
	}
	if m2.Body != "weekly digest" {
		t.Errorf("m2.Body = %q, want plain part", m2.Body)
	}

	if f.lastMax != "4" {
		t.Errorf("maxResults = %q, want 4", f.lastMax)
	}
}

func TestFetch_QueryFromCriteria(t *testing.T) {
	t.Parallel()

	f := &fakeGmail{}
	c := newTestClient(t, f)

	start := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	if _, err := c.Fetch(context.Background(), mail.Criteria{Unread: true, Start: start, End: end}); err != nil {
		t.Fatal(err)
	}

	want := "label:INBOX is:unread after:2026/02/08 before:2026/02/10"
	if f.lastQuery != want {
		t.Errorf("query = %q, want %q", f.lastQuery, want)
	}

	if _, err := c.Fetch(context.Background(), mail.Criteria{Unread: false}); err != nil {
		t.Fatal(err)
	}
	if f.lastQuery != "label:INBOX is:read" {
		t.Errorf("query = %q", f.lastQuery)
	}
}

func TestFetch_TokenCached(t *testing.T) {
	t.Parallel()

	f := &fakeGmail{}
	c := newTestClient(t, f)

	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background(), mail.Criteria{Unread: true}); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}
}

func TestFetch_TokenRefreshFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	t.Cleanup(srv.Close)

	c := New("cid", "secret", "rt", nil)
	c.tokenURL = srv.URL
	c.apiBase = srv.URL

	if _, err := c.Fetch(context.Background(), mail.Criteria{Unread: true}); err == nil {
		t.Fatal("expected error from failed token exchange")
	}
}
