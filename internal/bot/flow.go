package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

// FlowState is the position of an authorization handshake.
type FlowState int

const (
	Unauthorized FlowState = iota
	AwaitingRedirect
	ExchangingCode
	Authorized
	Failed
)

func (s FlowState) String() string {
	switch s {
	case Unauthorized:
		return "unauthorized"
	case AwaitingRedirect:
		return "awaiting_redirect"
	case ExchangingCode:
		return "exchanging_code"
	case Authorized:
		return "authorized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthorizationURL returns the consent URL for scopes. Without scopes it uses
// the app's configured scopes, then the binding's. It makes no call and
// changes nothing.
func (c *Client) AuthorizationURL(scopes ...string) string {
	return c.binding.AuthorizationURL(c.app, c.binding.EncodeScopes(c.requestedScopes(scopes)))
}

// requestedScopes applies the precedence explicit > app config > binding default.
func (c *Client) requestedScopes(scopes []string) []string {
	if len(scopes) > 0 {
		return scopes
	}
	if configured := c.app.ScopeList(); len(configured) > 0 {
		return configured
	}
	return c.binding.Scopes()
}

// RedirectCode returns the authorization code carried by a redirect request.
// ok is false when the code is absent; the flow must not continue then.
func RedirectCode(r *http.Request) (code string, ok bool) {
	code = r.URL.Query().Get("code")
	return code, code != ""
}

// RequireRedirectCode is RedirectCode returning *MalformedRedirectError
// instead of false.
func RequireRedirectCode(r *http.Request) (string, error) {
	code, ok := RedirectCode(r)
	if !ok {
		return "", &MalformedRedirectError{Query: r.URL.RawQuery}
	}
	return code, nil
}

// Exchange trades an authorization code for a token granted scopes (chosen
// as for AuthorizationURL when none are given). It is never retried.
func (c *Client) Exchange(ctx context.Context, code string, scopes ...string) (AccessToken, error) {
	if code == "" {
		return AccessToken{}, &MalformedRedirectError{}
	}

	resp, err := c.send(ctx, c.binding.TokenRequest(c.app, code))
	if err != nil {
		return AccessToken{}, err
	}

	var data map[string]any
	decodeErr := json.Unmarshal(resp.Body, &data)
	if resp.StatusCode != http.StatusOK {
		e := &TokenExchangeError{StatusCode: resp.StatusCode, Raw: resp.Body}
		if decodeErr == nil {
			e.Body = data
		}
		return AccessToken{}, e
	}
	if decodeErr != nil {
		return AccessToken{}, &TokenExchangeError{StatusCode: resp.StatusCode, Raw: resp.Body, Err: decodeErr}
	}

	value := c.binding.AccessTokenValue(data)
	if value == "" {
		return AccessToken{}, &TokenExchangeError{
			StatusCode: resp.StatusCode,
			Body:       data,
			Raw:        resp.Body,
			Err:        errors.New("response carries no access token"),
		}
	}
	token := NewAccessToken(value, c.binding.AccessTokenType(data), c.requestedScopes(scopes))
	if eb, ok := c.binding.(ExpiryBinding); ok {
		token = token.WithExpiry(eb.AccessTokenExpiry(data))
	}
	c.logger.Info("access token issued", "scopes", token.Scopes(), "expires", token.Expiry())
	return token, nil
}

// ResolveIdentity looks up the account owning token with one call that skips
// scope verification. The held token is neither read nor replaced.
func (c *Client) ResolveIdentity(ctx context.Context, token AccessToken) (string, error) {
	v, err := c.Do(ctx, c.binding.IdentityRequest(), SkipScopeCheck(), WithToken(token))
	if err != nil {
		return "", err
	}
	return c.binding.Identity(v), nil
}

// Flow tracks one authorization handshake for a client.
type Flow struct {
	c      *Client
	scopes []string

	mu    sync.Mutex
	state FlowState
}

// NewFlow starts a handshake for scopes, defaulting as AuthorizationURL does.
func (c *Client) NewFlow(scopes ...string) *Flow {
	return &Flow{c: c, scopes: c.requestedScopes(scopes), state: Unauthorized}
}

// State returns the current state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) set(s FlowState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Scopes returns the scopes this flow requests.
func (f *Flow) Scopes() []string {
	return append([]string(nil), f.scopes...)
}

// Start returns the authorization URL and waits for the redirect.
func (f *Flow) Start() string {
	u := f.c.AuthorizationURL(f.scopes...)
	f.set(AwaitingRedirect)
	return u
}

// Receive reads the code from the redirect request.
func (f *Flow) Receive(r *http.Request) (string, error) {
	return RequireRedirectCode(r)
}

// Complete exchanges code, resolves the identity behind the new token and
// installs it on the client. The token is only installed when both succeed.
func (f *Flow) Complete(ctx context.Context, code string) (AccessToken, string, error) {
	if code == "" {
		return AccessToken{}, "", &MalformedRedirectError{}
	}

	f.set(ExchangingCode)
	token, err := f.c.Exchange(ctx, code, f.scopes...)
	if err != nil {
		f.set(Failed)
		return AccessToken{}, "", err
	}
	identity, err := f.c.ResolveIdentity(ctx, token)
	if err != nil {
		f.set(Failed)
		return AccessToken{}, "", err
	}

	f.c.SetToken(token)
	f.set(Authorized)
	return token, identity, nil
}
