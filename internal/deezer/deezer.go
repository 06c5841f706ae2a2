// Package deezer binds the Deezer API to the bot framework.
package deezer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/config"
	"github.com/gsarma/botkit/internal/models"
)

// Endpoint is Deezer's authorization server (Connect).
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://connect.deezer.com/oauth/auth.php",
	TokenURL: "https://connect.deezer.com/oauth/access_token.php",
}

// APIEndpoint is the default target for authenticated calls.
var APIEndpoint = bot.Endpoint{Scheme: "https", Host: "api.deezer.com", Port: 443}

// AllScopes is every permission Deezer grants.
var AllScopes = []string{
	"basic_access",
	"email",
	"offline_access",
	"manage_library",
	"manage_community",
	"delete_library",
	"listening_history",
}

const ModelUser = "User"

// Binding implements bot.Binding for Deezer.
type Binding struct {
	endpoint oauth2.Endpoint
	api      bot.Endpoint
}

// Option configures a Binding.
type Option func(*Binding)

// WithEndpoint overrides the Connect endpoints, e.g. for a test server.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(b *Binding) {
		b.endpoint = e
	}
}

// WithAPIEndpoint overrides the API host.
func WithAPIEndpoint(e bot.Endpoint) Option {
	return func(b *Binding) {
		b.api = e
	}
}

func New(opts ...Option) *Binding {
	b := &Binding{endpoint: Endpoint, api: APIEndpoint}
	for _, o := range opts {
		o(b)
	}
	return b
}

var (
	_ bot.Binding       = (*Binding)(nil)
	_ bot.ExpiryBinding = (*Binding)(nil)
)

func (b *Binding) Name() string           { return "deezer" }
func (b *Binding) Endpoint() bot.Endpoint { return b.api }

func (b *Binding) Limits() bot.RateLimit {
	return bot.RateLimit{RemainingRequests: 50, RemainingSeconds: 5}
}

func (b *Binding) Scopes() []string { return append([]string(nil), AllScopes...) }

func (b *Binding) EncodeScopes(scopes []string) string {
	return strings.Join(scopes, ",")
}

// AuthorizationURL is built by concatenation: Deezer expects redirect_uri verbatim.
func (b *Binding) AuthorizationURL(app config.App, perms string) string {
	return b.endpoint.AuthURL + "?" +
		"app_id=" + app.AppID + "&" +
		"redirect_uri=" + app.RedirectURI + "&" +
		"perms=" + perms
}

func (b *Binding) TokenRequest(app config.App, code string) bot.Request {
	u, err := url.Parse(b.endpoint.TokenURL)
	if err != nil {
		// Endpoint URLs are compile-time constants or test fixtures.
		panic(fmt.Sprintf("deezer: bad token URL %q: %v", b.endpoint.TokenURL, err))
	}
	port, _ := strconv.Atoi(u.Port())
	return bot.Request{
		Method: http.MethodGet,
		Scheme: u.Scheme,
		Host:   u.Hostname(),
		Port:   port,
		Path:   u.Path,
		Query: url.Values{
			"app_id": {app.AppID},
			"secret": {app.AppSecret},
			"code":   {code},
			"output": {"json"},
		},
	}
}

// tokenFromResponse reads the exchange response. Deezer sends
// {"access_token": ..., "expires": seconds}; expires 0 means the token does
// not expire (offline_access).
func tokenFromResponse(data map[string]any, now time.Time) *oauth2.Token {
	value, _ := data["access_token"].(string)
	tok := (&oauth2.Token{AccessToken: value}).WithExtra(data)
	if secs := expiresIn(tok.Extra("expires")); secs > 0 {
		tok.Expiry = now.Add(time.Duration(secs) * time.Second)
	}
	return tok
}

func expiresIn(v any) int64 {
	switch e := v.(type) {
	case float64:
		return int64(e)
	case string:
		n, _ := strconv.ParseInt(e, 10, 64)
		return n
	default:
		return 0
	}
}

func (b *Binding) AccessTokenValue(data map[string]any) string {
	return tokenFromResponse(data, time.Now()).AccessToken
}

// AccessTokenType is always empty; Deezer does not send one.
func (b *Binding) AccessTokenType(map[string]any) string { return "" }

// AccessTokenExpiry is zero for tokens granted with offline_access.
func (b *Binding) AccessTokenExpiry(data map[string]any) time.Time {
	return tokenFromResponse(data, time.Now()).Expiry
}

func (b *Binding) Prepare(req *bot.Request, token bot.AccessToken) {
	if req.Query == nil {
		req.Query = url.Values{}
	}
	req.Query.Set("access_token", token.Value())
}

// EstimateRateLimit assumes one request spent; Deezer sends no quota headers.
func (b *Binding) EstimateRateLimit(_ *bot.Response, defaults bot.RateLimit) bot.RateLimit {
	return bot.RateLimit{
		RemainingRequests: defaults.RemainingRequests - 1,
		RemainingSeconds:  defaults.RemainingSeconds,
	}
}

func (b *Binding) ExtractData(resp *bot.Response) ([]byte, error) {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err == nil && envelope.Error != nil {
		return nil, envelope.Error
	}
	return resp.Body, nil
}

func (b *Binding) Models() map[string]bot.ModelDecoder {
	return map[string]bot.ModelDecoder{
		ModelUser: models.DecodeUser,
	}
}

func (b *Binding) IdentityRequest() bot.Request { return MeRequest() }

func (b *Binding) Identity(v any) string {
	if u, ok := v.(*models.User); ok {
		return u.Name()
	}
	return ""
}
