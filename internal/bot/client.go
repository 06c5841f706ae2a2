// Package bot is a client framework for REST APIs authorized through a
// three-legged OAuth-style flow. A Client owns the token, the rate-limit
// estimate and the request pipeline; a Binding supplies everything that is
// specific to one provider.
//
// Usage:
//
//	c := bot.New(deezer.New(), app)
//	flow := c.NewFlow()
//	fmt.Println(flow.Start())           // send the user here
//	code, err := flow.Receive(redirect) // the request hitting redirect_uri
//	token, user, err := flow.Complete(ctx, code)
//	me, err := c.Do(ctx, bot.Request{Path: "/user/me", Model: "User"})
package bot

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/gsarma/botkit/internal/config"
)

const tracerName = "github.com/gsarma/botkit/internal/bot"

// Client drives one application of one provider.
type Client struct {
	binding      Binding
	app          config.App
	httpClient   *http.Client
	logger       *slog.Logger
	tracer       trace.Tracer
	verifyScopes bool
	defaults     RateLimit

	mu     sync.RWMutex
	token  *AccessToken
	limits RateLimit
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTracerProvider sets where call spans go. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithScopeVerification toggles the pre-dispatch scope check for every call.
// It is on by default.
func WithScopeVerification(enabled bool) Option {
	return func(c *Client) {
		c.verifyScopes = enabled
	}
}

// New creates a client for app using binding.
func New(binding Binding, app config.App, opts ...Option) *Client {
	c := &Client{
		binding:      binding,
		app:          app,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		verifyScopes: true,
		defaults:     binding.Limits().withDefaults(),
	}
	for _, o := range opts {
		o(c)
	}
	c.limits = c.defaults
	c.logger = c.logger.With("bot", binding.Name(), "app", app.Name)
	return c
}

// Binding returns the provider binding.
func (c *Client) Binding() Binding { return c.binding }

// App returns the application configuration.
func (c *Client) App() config.App { return c.app }

// Token returns the held token, if any.
func (c *Client) Token() (AccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return AccessToken{}, false
	}
	return *c.token, true
}

// SetToken replaces the held token. Callers serialize re-authorization.
func (c *Client) SetToken(t AccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &t
}

// ClearToken forgets the held token.
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

// RateLimit returns the last estimate.
func (c *Client) RateLimit() RateLimit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

func (c *Client) updateRateLimit(resp *Response) RateLimit {
	next := c.binding.EstimateRateLimit(resp, c.defaults)
	c.mu.Lock()
	c.limits = next
	c.mu.Unlock()
	return next
}
