package twilio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linnemanlabs/mailwatch/internal/notify"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc) *Transport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr := New("AC123", "secret", "whatsapp:+14155238886", "whatsapp:+491701234567")
	tr.endpoint = srv.URL + "/2010-04-01/Accounts/AC123/Messages.json"
	return tr
}

func TestSend_Success(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"From": r.PostFormValue("From"),
			"To":   r.PostFormValue("To"),
			"Body": r.PostFormValue("Body"),
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid": "SM42", "status": "queued"}`))
	})

	sid, err := tr.Send(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if sid != "SM42" {
		t.Errorf("sid = %q, want SM42", sid)
	}
	if gotForm["From"] != "whatsapp:+14155238886" || gotForm["To"] != "whatsapp:+491701234567" {
		t.Errorf("form = %v", gotForm)
	}
	if gotForm["Body"] != "hello" {
		t.Errorf("Body = %q", gotForm["Body"])
	}
}

func TestSend_ChannelExpired(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": 63016, "message": "channel could not find a valid session", "status": 400}`))
	})

	_, err := tr.Send(context.Background(), "hello")
	if !errors.Is(err, notify.ErrChannelExpired) {
		t.Fatalf("err = %v, want ErrChannelExpired", err)
	}
}

func TestSend_OtherAPIError(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code": 20003, "message": "authenticate", "status": 401}`))
	})

	_, err := tr.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, notify.ErrChannelExpired) {
		t.Fatal("generic API error must not map to ErrChannelExpired")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want status code in message", err)
	}
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	if !New("sid", "token", "from", "to").Enabled() {
		t.Error("full credentials should enable the transport")
	}
	if New("sid", "", "from", "to").Enabled() {
		t.Error("missing token should disable the transport")
	}
	if New("", "", "", "").Enabled() {
		t.Error("empty credentials should disable the transport")
	}
}
