package bot_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gsarma/botkit/internal/bot"
)

func TestDo_InsufficientScope_NoNetworkCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	defer srv.Close()

	c, tr := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", []string{"read"}))

	_, err := c.Do(context.Background(), bot.Request{Path: "/items", Scopes: []string{"read", "write"}})
	var scopeErr *bot.InsufficientScopeError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("expected InsufficientScopeError, got %v", err)
	}
	if !reflect.DeepEqual(scopeErr.Missing, []string{"write"}) {
		t.Errorf("missing = %v", scopeErr.Missing)
	}
	if n := tr.calls.Load(); n != 0 {
		t.Errorf("transport called %d times", n)
	}
	if got := c.RateLimit(); got.RemainingRequests != 10 {
		t.Errorf("rate limit must not move without a call, got %+v", got)
	}
}

func TestDo_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, tr := newStubClient(t, srv)

	_, err := c.Do(context.Background(), bot.Request{Path: "/items"})
	if !errors.Is(err, bot.ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if tr.calls.Load() != 0 {
		t.Error("no call expected without a token")
	}
}

func TestDo_PrepareAttachesExactlyOneCredential(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("fresh", "", []string{"read"}))

	req := bot.Request{
		Path:  "/items",
		Query: url.Values{"token": {"stale"}, "limit": {"10"}},
	}
	if _, err := c.Do(context.Background(), req); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v := got["token"]; len(v) != 1 || v[0] != "fresh" {
		t.Errorf("token params = %v", v)
	}
	if got.Get("limit") != "10" {
		t.Errorf("unrelated parameter lost: %v", got)
	}
	if req.Query.Get("token") != "stale" {
		t.Error("caller's descriptor was mutated")
	}
}

func TestDo_DecodesModelAndUpdatesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("X-Remaining", "7")
		w.Write([]byte(`{"name":"one"}`))
	}))
	defer srv.Close()

	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", []string{"read"}))

	v, err := c.Do(context.Background(), bot.Request{Path: "items/1", Model: "Item", Scopes: []string{"read"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["name"] != "one" {
		t.Errorf("unexpected result %#v", v)
	}
	if got := c.RateLimit(); got.RemainingRequests != 7 || got.RemainingSeconds != 5 {
		t.Errorf("rate limit = %+v", got)
	}
}

func TestDo_RawBodyWithoutModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain"))
	}))
	defer srv.Close()

	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil))

	v, err := c.Do(context.Background(), bot.Request{Path: "/raw"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if b, ok := v.([]byte); !ok || string(b) != "plain" {
		t.Errorf("unexpected result %#v", v)
	}
}

func TestDo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Remaining", "3")
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil))

	v, err := c.Do(context.Background(), bot.Request{Path: "/items", Model: "Item"})
	var httpErr *bot.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected HTTPError 403, got %v", err)
	}
	if v != nil {
		t.Errorf("result must be nil on error, got %#v", v)
	}
	if c.RateLimit().RemainingRequests != 3 {
		t.Error("rate limit should update on every completed response")
	}
}

func TestDo_TransportErrorHidesQuery(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, _ := newStubClient(t, srv)
	srv.Close()
	c.SetToken(bot.NewAccessToken("secret-token", "", nil))

	_, err := c.Do(context.Background(), bot.Request{Path: "/items"})
	var tErr *bot.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if msg := fmt.Sprint(err); strings.Contains(msg, "secret-token") {
		t.Errorf("error leaks the token: %s", msg)
	}
}

func TestDo_EmbeddedErrorBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fault":"quota exceeded"}`))
	}))
	defer srv.Close()

	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil))

	v, err := c.Do(context.Background(), bot.Request{Path: "/items", Model: "Item"})
	if err == nil || err.Error() != "quota exceeded" {
		t.Fatalf("expected embedded error, got %v", err)
	}
	if v != nil {
		t.Errorf("result must be nil on error, got %#v", v)
	}
}

func TestDo_UnknownModel_NoNetworkCall(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, tr := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil))

	_, err := c.Do(context.Background(), bot.Request{Path: "/items", Model: "Playlist"})
	var mErr *bot.UnknownModelError
	if !errors.As(err, &mErr) || mErr.Model != "Playlist" {
		t.Fatalf("expected UnknownModelError, got %v", err)
	}
	if tr.calls.Load() != 0 {
		t.Error("no call expected for an unknown model")
	}
}

func TestDo_SkipScopeCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	req := bot.Request{Path: "/items", Scopes: []string{"admin"}}

	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil))
	if _, err := c.Do(context.Background(), req, bot.SkipScopeCheck()); err != nil {
		t.Errorf("per-call skip: %v", err)
	}
	if _, err := c.Do(context.Background(), req); err == nil {
		t.Error("skip must not outlive its call")
	}

	off, _ := newStubClient(t, srv, bot.WithScopeVerification(false))
	off.SetToken(bot.NewAccessToken("tok", "", nil))
	if _, err := off.Do(context.Background(), req); err != nil {
		t.Errorf("verification disabled: %v", err)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c, _ := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, bot.Request{Path: "/items"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDo_ExpiredToken_NoNetworkCall(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c, tr := newStubClient(t, srv)
	c.SetToken(bot.NewAccessToken("tok", "", nil).WithExpiry(time.Now().Add(-time.Minute)))

	if _, err := c.Do(context.Background(), bot.Request{Path: "/items"}); !errors.Is(err, bot.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if tr.calls.Load() != 0 {
		t.Error("no call expected with an expired token")
	}
}

func TestHTTPError_TruncatesOnRuneBoundary(t *testing.T) {
	err := &bot.HTTPError{StatusCode: http.StatusBadRequest, Body: []byte("a" + strings.Repeat("é", 200))}
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Errorf("message is not valid UTF-8: %q", msg)
	}
	if !strings.HasSuffix(msg, "...") {
		t.Errorf("expected truncation, got %q", msg)
	}
}
