// botkit authorizes bot applications and runs jobs with their tokens.
//
// Usage:
//
//	botkit authorize <bot> -a <app> [-scopes a,b]
//	botkit url       <bot> -a <app> [-scopes a,b]
//	botkit job       <bot> <job> -a <app> -u <user> [args...]
//	botkit watch     <bot> <job> -a <app> [-every 1m] [args...]
//	botkit tokens    <bot> -a <app>
//	botkit revoke    <bot> -a <app> -u <user>
//	botkit jobs      <bot>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gsarma/botkit/internal/app"
	"github.com/gsarma/botkit/internal/config"
	"github.com/gsarma/botkit/internal/crypto"
	"github.com/gsarma/botkit/internal/jobs"
	"github.com/gsarma/botkit/internal/logger"
	"github.com/gsarma/botkit/internal/store"
)

const usage = `usage:
  botkit authorize <bot> -a <app> [-scopes a,b]
  botkit url       <bot> -a <app> [-scopes a,b]
  botkit job       <bot> <job> -a <app> -u <user> [args...]
  botkit watch     <bot> <job> -a <app> [-every 1m] [args...]
  botkit tokens    <bot> -a <app>
  botkit revoke    <bot> -a <app> -u <user>
  botkit jobs      <bot>
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintln(os.Stderr, "botkit:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errUsage
	}
	cmd, botName, rest := args[0], args[1], args[2:]

	settings, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(settings.LogLevel)
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load(settings.ConfigPath)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := app.NewRunner(cfg, st, app.WithLogger(log), app.WithOutput(out))

	switch cmd {
	case "authorize":
		fs, appName, _, scopes := newFlags(cmd)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if settings.Store == string(store.TypeMemory) {
			log.Warn("memory store: the token will not outlive this process")
		}
		rec, err := runner.Authorize(ctx, botName, *appName, config.SplitScopes(*scopes))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "authorized %s (%s)\n", rec.User, strings.Join(rec.Token.Scopes(), ","))
		return nil

	case "url":
		fs, appName, _, scopes := newFlags(cmd)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		u, err := runner.AuthorizationURL(botName, *appName, config.SplitScopes(*scopes))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, u)
		return nil

	case "job":
		if len(rest) < 1 {
			return errUsage
		}
		job := rest[0]
		fs, appName, user, _ := newFlags(cmd)
		if err := fs.Parse(rest[1:]); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("%w: -u is required", errUsage)
		}
		v, err := runner.RunJob(ctx, botName, *appName, *user, job, fs.Args())
		if err != nil {
			return err
		}
		return printResult(out, v)

	case "watch":
		if len(rest) < 1 {
			return errUsage
		}
		job := rest[0]
		fs, appName, _, _ := newFlags(cmd)
		every := fs.Duration("every", time.Minute, "interval between runs")
		if err := fs.Parse(rest[1:]); err != nil {
			return err
		}
		return runner.Watch(ctx, botName, *appName, job, fs.Args(), *every, func(task jobs.Task, res jobs.Result) {
			if res.Err != nil {
				return
			}
			fmt.Fprintf(out, "[%s] %s: ", time.Now().Format(time.TimeOnly), task.User)
			_ = printResult(out, res.Value)
		})

	case "tokens":
		fs, appName, _, _ := newFlags(cmd)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		users, err := runner.Tokens(ctx, botName, *appName)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintln(out, u)
		}
		return nil

	case "revoke":
		fs, appName, user, _ := newFlags(cmd)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("%w: -u is required", errUsage)
		}
		return runner.Revoke(ctx, botName, *appName, *user)

	case "jobs":
		names, err := runner.JobNames(botName)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.Join(names, "\n"))
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlags(cmd string) (fs *flag.FlagSet, appName, user, scopes *string) {
	fs = flag.NewFlagSet(cmd, flag.ContinueOnError)
	appName = fs.String("a", "main", "application name from the config file")
	user = fs.String("u", "", "user whose stored token is used")
	scopes = fs.String("scopes", "", "comma-separated scopes; the app's scopes when empty")
	return fs, appName, user, scopes
}

func openStore(ctx context.Context, s config.Settings) (store.Store, error) {
	var sealer *crypto.Sealer
	if s.RootKey != "" {
		var err error
		if sealer, err = crypto.NewSealer(s.RootKey); err != nil {
			return nil, err
		}
	}
	return store.New(ctx, store.Config{
		Type:        store.ParseType(s.Store),
		Redis:       store.RedisOptions{Addr: s.RedisAddr, DB: s.RedisDB},
		DatabaseURL: s.DatabaseURL,
		FilePath:    s.TokenFile,
		Sealer:      sealer,
	})
}

func printResult(out io.Writer, v any) error {
	if b, ok := v.([]byte); ok {
		_, err := fmt.Fprintln(out, string(b))
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
