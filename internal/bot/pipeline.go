package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gsarma/botkit/internal/logger"
)

type callOptions struct {
	skipScopeCheck bool
	token          *AccessToken
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// SkipScopeCheck disables scope verification for this call only.
func SkipScopeCheck() CallOption {
	return func(o *callOptions) {
		o.skipScopeCheck = true
	}
}

// WithToken authenticates this call with t instead of the held token.
func WithToken(t AccessToken) CallOption {
	return func(o *callOptions) {
		o.token = &t
	}
}

// Do runs req through the pipeline: scope check, credential attachment,
// dispatch, rate-limit update, then extraction and model mapping. The result
// is the decoded model, or the raw body when req.Model is empty.
func (c *Client) Do(ctx context.Context, req Request, opts ...CallOption) (any, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	if logger.RequestID(ctx) == "" {
		ctx, _ = logger.WithRequestID(ctx)
	}
	log := logger.FromContext(ctx, c.logger)

	ctx, span := c.tracer.Start(ctx, "bot.Do", trace.WithAttributes(
		attribute.String("bot.name", c.binding.Name()),
		attribute.String("http.method", req.method()),
		attribute.String("bot.path", req.Path),
	))
	defer span.End()

	v, err := c.do(ctx, req, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("call failed", "method", req.method(), "path", req.Path, "error", err)
		return nil, err
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, req Request, o callOptions) (any, error) {
	token, err := c.checkScopes(req, o)
	if err != nil {
		return nil, err
	}

	var decode ModelDecoder
	if req.Model != "" {
		d, ok := c.binding.Models()[req.Model]
		if !ok {
			return nil, &UnknownModelError{Model: req.Model}
		}
		decode = d
	}

	prepared := req.clone()
	c.binding.Prepare(&prepared, token)

	resp, err := c.send(ctx, prepared)
	if err != nil {
		return nil, err
	}
	limits := c.updateRateLimit(resp)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	logger.FromContext(ctx, c.logger).Debug("call completed",
		"method", prepared.method(),
		"path", prepared.Path,
		"status", resp.StatusCode,
		"remaining_requests", limits.RemainingRequests,
	)

	if !resp.ok() {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	data, err := c.binding.ExtractData(resp)
	if err != nil {
		return nil, err
	}
	if decode == nil {
		return data, nil
	}
	v, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("bot: decode %s: %w", req.Model, err)
	}
	return v, nil
}

// checkScopes picks the token for the call and verifies it covers req.Scopes.
func (c *Client) checkScopes(req Request, o callOptions) (AccessToken, error) {
	var token AccessToken
	if o.token != nil {
		token = *o.token
	} else {
		held, ok := c.Token()
		if !ok {
			return AccessToken{}, ErrNoToken
		}
		token = held
	}
	if token.Expired(time.Now()) {
		return AccessToken{}, ErrTokenExpired
	}

	if !c.verifyScopes || o.skipScopeCheck {
		return token, nil
	}
	if missing := token.MissingScopes(req.Scopes...); len(missing) > 0 {
		return AccessToken{}, &InsufficientScopeError{
			Required: req.Scopes,
			Missing:  missing,
			Granted:  token.Scopes(),
		}
	}
	return token, nil
}

// send performs the HTTP round trip without judging the status code.
func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	u := req.URL(c.binding.Endpoint())
	redacted := u.Scheme + "://" + u.Host + u.Path

	var body io.Reader
	if len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("bot: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		// url.Error repeats the full URL, query credentials included.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, &TransportError{Op: req.method(), URL: redacted, Err: err}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Op: req.method(), URL: redacted, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: b}, nil
}
