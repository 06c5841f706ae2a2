// Package store persists authorized tokens per (bot, app, user).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/crypto"
)

var (
	// ErrNotFound is returned when no token is stored for a key.
	ErrNotFound = errors.New("token not found")
	// ErrEmptyKey is returned when a record lacks its bot, app or user.
	ErrEmptyKey = errors.New("bot, app and user are required")
)

// Record is one stored authorization.
type Record struct {
	Bot       string
	App       string
	User      string
	Token     bot.AccessToken
	CreatedAt time.Time
}

func (r Record) validate() error {
	if r.Bot == "" || r.App == "" || r.User == "" {
		return ErrEmptyKey
	}
	return nil
}

// Store keeps one token per (bot, app, user). Save replaces.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, botName, app, user string) (Record, error)
	Delete(ctx context.Context, botName, app, user string) error
	// List returns the users holding a token for (bot, app), sorted.
	List(ctx context.Context, botName, app string) ([]string, error)
	Close() error
}

func notFound(botName, app, user string) error {
	return fmt.Errorf("%w: %s/%s/%s", ErrNotFound, botName, app, user)
}

// codec seals token values when a sealer is configured.
type codec struct {
	sealer *crypto.Sealer
}

func (c codec) seal(value string) ([]byte, error) {
	if c.sealer == nil {
		return []byte(value), nil
	}
	return c.sealer.Seal([]byte(value))
}

func (c codec) open(data []byte) (string, error) {
	if c.sealer == nil {
		return string(data), nil
	}
	b, err := c.sealer.Open(data)
	if err != nil {
		return "", fmt.Errorf("open token: %w", err)
	}
	return string(b), nil
}

// sealedRecord is the serialized form of a Record. Key fields are omitted
// where the storage key already carries them.
type sealedRecord struct {
	Bot       string    `json:"bot,omitempty"`
	App       string    `json:"app,omitempty"`
	User      string    `json:"user,omitempty"`
	Value     []byte    `json:"value"`
	Type      string    `json:"type,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	CreatedAt time.Time `json:"created_at"`
}

// encode seals rec, stamping CreatedAt when unset. Key fields are left empty.
func (c codec) encode(rec Record) (sealedRecord, error) {
	value, err := c.seal(rec.Token.Value())
	if err != nil {
		return sealedRecord{}, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return sealedRecord{
		Value:     value,
		Type:      rec.Token.Type(),
		Scopes:    rec.Token.Scopes(),
		ExpiresAt: rec.Token.Expiry(),
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (c codec) decode(doc sealedRecord) (Record, error) {
	value, err := c.open(doc.Value)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Bot:       doc.Bot,
		App:       doc.App,
		User:      doc.User,
		Token:     bot.NewAccessToken(value, doc.Type, doc.Scopes).WithExpiry(doc.ExpiresAt),
		CreatedAt: doc.CreatedAt,
	}, nil
}
