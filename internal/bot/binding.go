package bot

import (
	"time"

	"github.com/gsarma/botkit/internal/config"
)

// ModelDecoder turns a response body into a domain object.
type ModelDecoder func(data []byte) (any, error)

// Binding is everything a provider supplies to plug into the client.
// Implementations are pure mappings; the client owns all control flow.
type Binding interface {
	// Name identifies the provider, e.g. "deezer".
	Name() string
	// Endpoint is the default target for authenticated calls.
	Endpoint() Endpoint
	// Limits seeds the rate-limit estimate; zero fields use DefaultRateLimit.
	Limits() RateLimit
	// Scopes lists every scope the provider understands. It is the scope set
	// requested when neither the call nor the app names one.
	Scopes() []string
	// EncodeScopes renders scopes in the provider's query syntax.
	EncodeScopes(scopes []string) string

	// AuthorizationURL is where the user grants consent.
	AuthorizationURL(app config.App, perms string) string
	// TokenRequest describes the call exchanging code for a token.
	TokenRequest(app config.App, code string) Request
	// AccessTokenValue and AccessTokenType read the decoded exchange response.
	AccessTokenValue(data map[string]any) string
	AccessTokenType(data map[string]any) string

	// Prepare attaches token to req.
	Prepare(req *Request, token AccessToken)
	// EstimateRateLimit computes the quota left after resp.
	EstimateRateLimit(resp *Response, defaults RateLimit) RateLimit
	// ExtractData returns the payload of a 2xx response, or an error the
	// provider embedded in it.
	ExtractData(resp *Response) ([]byte, error)
	// Models maps Request.Model directives to decoders.
	Models() map[string]ModelDecoder

	// IdentityRequest fetches the account owning a token; Identity labels
	// the decoded result.
	IdentityRequest() Request
	Identity(v any) string
}

// ExpiryBinding is implemented by bindings whose exchange response says when
// the token expires. A zero time means it does not.
type ExpiryBinding interface {
	AccessTokenExpiry(data map[string]any) time.Time
}
