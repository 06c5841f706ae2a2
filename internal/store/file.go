package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gsarma/botkit/internal/crypto"
)

// DefaultFilePath is tokens.json under the user's config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "botkit", "tokens.json"), nil
}

type fileDoc struct {
	Tokens []sealedRecord `json:"tokens"`
}

// FileStore keeps every record in one JSON file, rewritten atomically on
// each change. It serializes access within a process only.
type FileStore struct {
	path  string
	codec codec
	mu    sync.Mutex
}

// NewFileStore uses the file at path, creating its directory. A nil sealer
// stores token values in the clear.
func NewFileStore(path string, sealer *crypto.Sealer) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	s := &FileStore{path: path, codec: codec{sealer}}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() (fileDoc, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileDoc{}, nil
	}
	if err != nil {
		return fileDoc{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fileDoc{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (d fileDoc) index(botName, app, user string) int {
	for i, r := range d.Tokens {
		if r.Bot == botName && r.App == app && r.User == user {
			return i
		}
	}
	return -1
}

func (s *FileStore) Save(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	enc, err := s.codec.encode(rec)
	if err != nil {
		return err
	}
	enc.Bot, enc.App, enc.User = rec.Bot, rec.App, rec.User

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if i := doc.index(rec.Bot, rec.App, rec.User); i >= 0 {
		doc.Tokens[i] = enc
	} else {
		doc.Tokens = append(doc.Tokens, enc)
	}
	return s.write(doc)
}

func (s *FileStore) Get(_ context.Context, botName, app, user string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return Record{}, err
	}
	i := doc.index(botName, app, user)
	if i < 0 {
		return Record{}, notFound(botName, app, user)
	}
	return s.codec.decode(doc.Tokens[i])
}

func (s *FileStore) Delete(_ context.Context, botName, app, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	i := doc.index(botName, app, user)
	if i < 0 {
		return notFound(botName, app, user)
	}
	doc.Tokens = append(doc.Tokens[:i], doc.Tokens[i+1:]...)
	return s.write(doc)
}

func (s *FileStore) List(_ context.Context, botName, app string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	users := []string{}
	for _, r := range doc.Tokens {
		if r.Bot == botName && r.App == app {
			users = append(users, r.User)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *FileStore) Close() error { return nil }
