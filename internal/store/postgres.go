package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/crypto"
)

const schema = `
CREATE TABLE IF NOT EXISTS bot_tokens (
    bot         TEXT        NOT NULL,
    app         TEXT        NOT NULL,
    user_name   TEXT        NOT NULL,
    token_value BYTEA       NOT NULL,
    token_type  TEXT        NOT NULL DEFAULT '',
    scopes      TEXT[]      NOT NULL DEFAULT '{}',
    expires_at  TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (bot, app, user_name)
)`

// Tables created before tokens carried an expiry lack the column.
const addExpiry = `ALTER TABLE bot_tokens ADD COLUMN IF NOT EXISTS expires_at TIMESTAMPTZ`

const upsertToken = `
INSERT INTO bot_tokens (bot, app, user_name, token_value, token_type, scopes, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (bot, app, user_name) DO UPDATE
SET token_value = EXCLUDED.token_value,
    token_type  = EXCLUDED.token_type,
    scopes      = EXCLUDED.scopes,
    expires_at  = EXCLUDED.expires_at,
    created_at  = EXCLUDED.created_at`

const getToken = `
SELECT token_value, token_type, scopes, expires_at, created_at
FROM bot_tokens
WHERE bot = $1 AND app = $2 AND user_name = $3`

// PostgresStore keeps records in the bot_tokens table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	codec codec
}

// NewPostgresStore connects and creates the table if needed.
// A nil sealer stores token values in the clear.
func NewPostgresStore(ctx context.Context, databaseURL string, sealer *crypto.Sealer) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, stmt := range []string{schema, addExpiry} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate bot_tokens: %w", err)
		}
	}
	return &PostgresStore{pool: pool, codec: codec{sealer}}, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	value, err := s.codec.seal(rec.Token.Value())
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	scopes := rec.Token.Scopes()
	if scopes == nil {
		scopes = []string{}
	}
	var expiresAt *time.Time
	if exp := rec.Token.Expiry(); !exp.IsZero() {
		expiresAt = &exp
	}
	_, err = s.pool.Exec(ctx, upsertToken,
		rec.Bot, rec.App, rec.User, value, rec.Token.Type(), scopes, expiresAt, rec.CreatedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, botName, app, user string) (Record, error) {
	var (
		sealed    []byte
		typ       string
		scopes    []string
		expiresAt *time.Time
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, getToken, botName, app, user).Scan(&sealed, &typ, &scopes, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, notFound(botName, app, user)
		}
		return Record{}, err
	}
	value, err := s.codec.open(sealed)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Bot:       botName,
		App:       app,
		User:      user,
		Token:     tokenWithExpiry(bot.NewAccessToken(value, typ, scopes), expiresAt),
		CreatedAt: createdAt,
	}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, botName, app, user string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM bot_tokens WHERE bot = $1 AND app = $2 AND user_name = $3`, botName, app, user)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(botName, app, user)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, botName, app string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_name FROM bot_tokens WHERE bot = $1 AND app = $2 ORDER BY user_name`, botName, app)
	if err != nil {
		return nil, err
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []string{}
	}
	return users, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func tokenWithExpiry(t bot.AccessToken, exp *time.Time) bot.AccessToken {
	if exp == nil {
		return t
	}
	return t.WithExpiry(*exp)
}
