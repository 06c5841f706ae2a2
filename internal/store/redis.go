package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/gsarma/botkit/internal/crypto"
)

const defaultRedisPrefix = "botkit:token:"

// RedisOptions configures RedisStore.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps one JSON document per record under prefix+bot:app:user and
// indexes users in a set under prefix+#users:bot:app. Key parts are
// query-escaped, so names cannot collide with each other or with the index.
type RedisStore struct {
	client *redis.Client
	prefix string
	codec  codec
}

// NewRedisStore connects and pings the server.
// A nil sealer stores token values in the clear.
func NewRedisStore(ctx context.Context, opts RedisOptions, sealer *crypto.Sealer) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, codec: codec{sealer}}, nil
}

func (s *RedisStore) key(botName, app, user string) string {
	return s.prefix + url.QueryEscape(botName) + ":" + url.QueryEscape(app) + ":" + url.QueryEscape(user)
}

func (s *RedisStore) usersKey(botName, app string) string {
	return s.prefix + "#users:" + url.QueryEscape(botName) + ":" + url.QueryEscape(app)
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	doc, err := s.codec.encode(rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.Bot, rec.App, rec.User), data, 0)
		pipe.SAdd(ctx, s.usersKey(rec.Bot, rec.App), rec.User)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, botName, app, user string) (Record, error) {
	raw, err := s.client.Get(ctx, s.key(botName, app, user)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, notFound(botName, app, user)
		}
		return Record{}, err
	}
	var doc sealedRecord
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, err
	}
	doc.Bot, doc.App, doc.User = botName, app, user
	return s.codec.decode(doc)
}

func (s *RedisStore) Delete(ctx context.Context, botName, app, user string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(botName, app, user))
		pipe.SRem(ctx, s.usersKey(botName, app), user)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return notFound(botName, app, user)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, botName, app string) ([]string, error) {
	users, err := s.client.SMembers(ctx, s.usersKey(botName, app)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
