// Package app wires configuration, bindings, storage and jobs together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/callback"
	"github.com/gsarma/botkit/internal/config"
	"github.com/gsarma/botkit/internal/jobs"
	"github.com/gsarma/botkit/internal/logger"
	"github.com/gsarma/botkit/internal/store"
)

// CodeSource shows authURL to the user and returns the code delivered to
// redirectURI.
type CodeSource func(ctx context.Context, authURL, redirectURI string) (string, error)

// Runner executes CLI operations against configured bots.
type Runner struct {
	cfg        *config.File
	bindings   Bindings
	store      store.Store
	logger     *slog.Logger
	out        io.Writer
	codes      CodeSource
	clientOpts []bot.Option
}

// Option configures a Runner.
type Option func(*Runner)

func WithBindings(b Bindings) Option {
	return func(r *Runner) {
		r.bindings = b
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithOutput sets where user-facing text goes. Default stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithCodeSource replaces the local redirect receiver.
func WithCodeSource(cs CodeSource) Option {
	return func(r *Runner) {
		r.codes = cs
	}
}

// WithClientOptions are applied to every client the runner builds.
func WithClientOptions(opts ...bot.Option) Option {
	return func(r *Runner) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

func NewRunner(cfg *config.File, st store.Store, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		bindings: DefaultBindings(),
		store:    st,
		logger:   slog.Default(),
		out:      os.Stdout,
	}
	for _, o := range opts {
		o(r)
	}
	if r.codes == nil {
		r.codes = r.receive
	}
	return r
}

// Client builds an unauthorized client for (botName, appName).
func (r *Runner) Client(botName, appName string) (*bot.Client, error) {
	spec, err := r.bindings.lookup(botName)
	if err != nil {
		return nil, err
	}
	appCfg, err := r.cfg.App(botName, appName)
	if err != nil {
		return nil, err
	}
	opts := append([]bot.Option{bot.WithLogger(r.logger)}, r.clientOpts...)
	return bot.New(spec.Binding(), appCfg, opts...), nil
}

// Restore builds a client holding the stored token of user.
func (r *Runner) Restore(ctx context.Context, botName, appName, user string) (*bot.Client, error) {
	c, err := r.Client(botName, appName)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.Get(ctx, botName, appName, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w; run `botkit authorize %s -a %s` first", err, botName, appName)
		}
		return nil, err
	}
	c.SetToken(rec.Token)
	return c, nil
}

// AuthorizationURL returns the consent URL without starting a flow.
func (r *Runner) AuthorizationURL(botName, appName string, scopes []string) (string, error) {
	c, err := r.Client(botName, appName)
	if err != nil {
		return "", err
	}
	return c.AuthorizationURL(scopes...), nil
}

// Authorize runs the full handshake and stores the token under the
// identity the provider reports for it.
func (r *Runner) Authorize(ctx context.Context, botName, appName string, scopes []string) (store.Record, error) {
	ctx, _ = logger.WithRequestID(ctx)
	log := logger.FromContext(ctx, r.logger).With("bot", botName, "app", appName)

	c, err := r.Client(botName, appName)
	if err != nil {
		return store.Record{}, err
	}
	flow := c.NewFlow(scopes...)
	code, err := r.codes(ctx, flow.Start(), c.App().RedirectURI)
	if err != nil {
		return store.Record{}, fmt.Errorf("wait for redirect: %w", err)
	}
	token, user, err := flow.Complete(ctx, code)
	if err != nil {
		log.Error("authorization failed", "state", flow.State(), "error", err)
		return store.Record{}, err
	}
	if user == "" {
		return store.Record{}, errors.New("provider returned no identity for the new token")
	}

	rec := store.Record{Bot: botName, App: appName, User: user, Token: token, CreatedAt: time.Now().UTC()}
	if err := r.store.Save(ctx, rec); err != nil {
		return store.Record{}, fmt.Errorf("save token: %w", err)
	}
	log.Info("authorized", "user", user, "scopes", token.Scopes())
	return rec, nil
}

// receive prints authURL and serves redirectURI until the redirect arrives.
func (r *Runner) receive(ctx context.Context, authURL, redirectURI string) (string, error) {
	recv, err := callback.NewReceiver(redirectURI, callback.WithLogger(r.logger))
	if err != nil {
		return "", err
	}
	if err := recv.Listen(); err != nil {
		return "", err
	}
	fmt.Fprintf(r.out, "Open this URL to authorize:\n\n  %s\n\n", authURL)
	return recv.Wait(ctx)
}

func (r *Runner) registry(botName string) (*jobs.Registry, error) {
	spec, err := r.bindings.lookup(botName)
	if err != nil {
		return nil, err
	}
	return spec.Jobs(), nil
}

// JobNames lists the jobs of botName.
func (r *Runner) JobNames(botName string) ([]string, error) {
	reg, err := r.registry(botName)
	if err != nil {
		return nil, err
	}
	return reg.Names(), nil
}

// RunJob runs job once with user's stored token.
func (r *Runner) RunJob(ctx context.Context, botName, appName, user, job string, args []string) (any, error) {
	reg, err := r.registry(botName)
	if err != nil {
		return nil, err
	}
	c, err := r.Restore(ctx, botName, appName, user)
	if err != nil {
		return nil, err
	}
	ctx, _ = logger.WithRequestID(ctx)
	return reg.Run(ctx, job, c, args)
}

// Tokens lists the users with a stored token for (botName, appName).
func (r *Runner) Tokens(ctx context.Context, botName, appName string) ([]string, error) {
	if _, err := r.cfg.App(botName, appName); err != nil {
		return nil, err
	}
	return r.store.List(ctx, botName, appName)
}

// Revoke forgets user's stored token.
func (r *Runner) Revoke(ctx context.Context, botName, appName, user string) error {
	return r.store.Delete(ctx, botName, appName, user)
}

// Watch runs job for every stored user of (botName, appName) every interval
// until ctx ends. onResult receives each outcome.
func (r *Runner) Watch(ctx context.Context, botName, appName, job string, args []string, interval time.Duration, onResult func(jobs.Task, jobs.Result)) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	reg, err := r.registry(botName)
	if err != nil {
		return err
	}
	if !slices.Contains(reg.Names(), job) {
		return fmt.Errorf("%w: %s", jobs.ErrUnknownJob, job)
	}
	users, err := r.Tokens(ctx, botName, appName)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return fmt.Errorf("no authorized users for %s/%s", botName, appName)
	}

	tasks := make([]jobs.Task, 0, len(users))
	for _, u := range users {
		c, err := r.Restore(ctx, botName, appName, u)
		if err != nil {
			return err
		}
		tasks = append(tasks, jobs.Task{User: u, Client: c, Args: args})
	}

	w := jobs.NewWorker(reg, job, tasks, jobs.WithInterval(interval), jobs.WithResultHandler(onResult))
	r.logger.Info("watching", "bot", botName, "app", appName, "job", job, "users", len(tasks), "interval", interval)
	w.Start(ctx)
	return nil
}
