package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoToken is returned when an authenticated call is made before a token is set.
var ErrNoToken = errors.New("bot: no access token")

// ErrTokenExpired is returned before dispatch when the token's expiry has passed.
var ErrTokenExpired = errors.New("bot: access token expired")

// TransportError is a connection-level failure. URL never includes the query.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bot: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the provider.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bot: HTTP %d: %s", e.StatusCode, snippet(e.Body))
}

// TokenExchangeError is a failed code-for-token exchange. Body holds the
// decoded response when it was JSON; Raw always holds the bytes received.
type TokenExchangeError struct {
	StatusCode int
	Body       map[string]any
	Raw        []byte
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bot: token exchange (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bot: token exchange failed with HTTP %d: %s", e.StatusCode, snippet(e.Raw))
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// InsufficientScopeError is raised before dispatch when the token does not
// cover the scopes a call declares.
type InsufficientScopeError struct {
	Required []string
	Missing  []string
	Granted  []string
}

func (e *InsufficientScopeError) Error() string {
	return fmt.Sprintf("bot: token lacks scopes %s (granted: %s)",
		strings.Join(e.Missing, ","), strings.Join(e.Granted, ","))
}

// MalformedRedirectError is a redirect without an authorization code,
// either because the user denied access or the URL was mangled.
type MalformedRedirectError struct {
	Query string
}

func (e *MalformedRedirectError) Error() string {
	if e.Query == "" {
		return "bot: redirect carries no authorization code"
	}
	return fmt.Sprintf("bot: redirect carries no authorization code (query %q)", e.Query)
}

// UnknownModelError is a Request.Model the binding cannot decode.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("bot: unknown model %q", e.Model)
}

// snippet shortens b to at most limit bytes without splitting a rune.
func snippet(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
