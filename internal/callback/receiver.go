// Package callback catches the provider's redirect on the local machine.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/gsarma/botkit/internal/bot"
)

const landingPage = `<html><body>
<h2>Authorization complete</h2>
<p>You can close this window and return to the terminal.</p>
</body></html>`

const failurePage = `<html><body>
<h2>Authorization failed</h2>
<p>The redirect carried no authorization code.</p>
</body></html>`

type result struct {
	code string
	err  error
}

// Receiver serves the redirect URI until the first redirect arrives.
type Receiver struct {
	addr    string
	path    string
	engine  *gin.Engine
	logger  *slog.Logger
	results chan result

	mu sync.Mutex
	ln net.Listener
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Receiver) {
		r.logger = l
	}
}

// NewReceiver prepares a receiver for redirectURI. Only http URIs can be
// served locally.
func NewReceiver(redirectURI string, opts ...Option) (*Receiver, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect_uri: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect_uri %q: only http can be received locally", redirectURI)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	r := &Receiver{
		addr:    net.JoinHostPort(u.Hostname(), port),
		path:    path,
		logger:  slog.Default(),
		results: make(chan result, 1),
	}
	for _, o := range opts {
		o(r)
	}

	r.engine = gin.New()
	r.engine.Use(gin.Recovery())
	r.engine.GET(path, r.handle)
	return r, nil
}

// Handler exposes the routes, e.g. for httptest.
func (r *Receiver) Handler() http.Handler { return r.engine }

// Path is the route the redirect arrives on.
func (r *Receiver) Path() string { return r.path }

func (r *Receiver) handle(c *gin.Context) {
	code, err := bot.RequireRedirectCode(c.Request)
	if err != nil {
		r.logger.Warn("redirect without code", "query", c.Request.URL.RawQuery)
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(failurePage))
		r.deliver(result{err: err})
		return
	}
	r.logger.Info("authorization code received")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(landingPage))
	r.deliver(result{code: code})
}

// deliver keeps the first outcome; later redirects are answered but ignored.
func (r *Receiver) deliver(res result) {
	select {
	case r.results <- res:
	default:
	}
}

// Listen binds the address. Wait calls it when it has not been called.
func (r *Receiver) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", r.addr, err)
	}
	r.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (r *Receiver) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln != nil {
		return r.ln.Addr().String()
	}
	return r.addr
}

// Wait serves until the first redirect or until ctx ends, then shuts the
// server down. It returns the code, or *bot.MalformedRedirectError for a
// redirect without one.
func (r *Receiver) Wait(ctx context.Context) (string, error) {
	if err := r.Listen(); err != nil {
		return "", err
	}
	srv := &http.Server{Handler: r.engine, ReadHeaderTimeout: 10 * time.Second}

	var res result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("waiting for redirect", "addr", r.Addr(), "path", r.path)
		if err := srv.Serve(r.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		var err error
		select {
		case res = <-r.results:
		case <-gctx.Done():
			err = gctx.Err()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			r.logger.Error("receiver shutdown failed", "error", serr)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return res.code, res.err
}
