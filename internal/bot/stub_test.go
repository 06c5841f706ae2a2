package bot_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/config"
)

// stubBinding is a minimal provider: token in the "token" query parameter,
// identity from GET /whoami, and an "Item" model decoding into a map.
type stubBinding struct {
	api bot.Endpoint
}

var _ bot.Binding = (*stubBinding)(nil)

func (s *stubBinding) Name() string           { return "stub" }
func (s *stubBinding) Endpoint() bot.Endpoint { return s.api }
func (s *stubBinding) Limits() bot.RateLimit  { return bot.RateLimit{RemainingRequests: 10} }
func (s *stubBinding) Scopes() []string       { return []string{"read", "write"} }

func (s *stubBinding) EncodeScopes(sc []string) string {
	return strings.Join(sc, " ")
}

func (s *stubBinding) AuthorizationURL(app config.App, perms string) string {
	return "https://auth.example.com/authorize?client=" + app.AppID + "&scope=" + perms
}

func (s *stubBinding) TokenRequest(app config.App, code string) bot.Request {
	return bot.Request{
		Method: http.MethodPost,
		Path:   "/token",
		Form:   url.Values{"client": {app.AppID}, "secret": {app.AppSecret}, "code": {code}},
	}
}

func (s *stubBinding) AccessTokenValue(data map[string]any) string {
	v, _ := data["token"].(string)
	return v
}

func (s *stubBinding) AccessTokenType(data map[string]any) string {
	v, _ := data["kind"].(string)
	return v
}

func (s *stubBinding) Prepare(req *bot.Request, token bot.AccessToken) {
	if req.Query == nil {
		req.Query = url.Values{}
	}
	req.Query.Set("token", token.Value())
}

func (s *stubBinding) EstimateRateLimit(resp *bot.Response, defaults bot.RateLimit) bot.RateLimit {
	if v := resp.Header.Get("X-Remaining"); v != "" {
		n, _ := strconv.Atoi(v)
		return bot.RateLimit{RemainingRequests: n, RemainingSeconds: defaults.RemainingSeconds}
	}
	return defaults
}

func (s *stubBinding) ExtractData(resp *bot.Response) ([]byte, error) {
	var env struct {
		Fault string `json:"fault"`
	}
	if json.Unmarshal(resp.Body, &env) == nil && env.Fault != "" {
		return nil, errors.New(env.Fault)
	}
	return resp.Body, nil
}

func (s *stubBinding) Models() map[string]bot.ModelDecoder {
	return map[string]bot.ModelDecoder{
		"Item": func(data []byte) (any, error) {
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

func (s *stubBinding) IdentityRequest() bot.Request {
	return bot.Request{Path: "/whoami", Model: "Item", Scopes: []string{"admin"}}
}

func (s *stubBinding) Identity(v any) string {
	m, _ := v.(map[string]any)
	name, _ := m["name"].(string)
	return name
}

// countingTransport counts round trips before delegating.
type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.next.RoundTrip(r)
}

var testApp = config.App{
	Name:        "main",
	AppID:       "1",
	AppSecret:   "s",
	RedirectURI: "http://localhost/cb",
	Scopes:      "read",
}

// newStubClient points a stub client at srv and returns it with its transport.
func newStubClient(t *testing.T, srv *httptest.Server, opts ...bot.Option) (*bot.Client, *countingTransport) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	tr := &countingTransport{next: http.DefaultTransport}
	opts = append([]bot.Option{bot.WithHTTPClient(&http.Client{Transport: tr})}, opts...)
	b := &stubBinding{api: bot.Endpoint{Scheme: "http", Host: u.Hostname(), Port: port}}
	return bot.New(b, testApp, opts...), tr
}
