package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/crypto"
)

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "tokens.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	sealer, err := crypto.NewSealer(strings.Repeat("0f", 32))
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path, sealer)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	rec := Record{Bot: "deezer", App: "main", User: "alice", Token: bot.NewAccessToken("plain-secret", "", []string{"email"})}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "plain-secret") {
		t.Error("token stored in the clear")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("token file mode = %v", perm)
	}

	again, err := NewFileStore(path, sealer)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := again.Get(ctx, "deezer", "main", "alice")
	if err != nil || got.Token.Value() != "plain-secret" || !reflect.DeepEqual(got.Token.Scopes(), []string{"email"}) {
		t.Errorf("Get = %q %v, %v", got.Token.Value(), got.Token.Scopes(), err)
	}

	other, _ := crypto.NewSealer(strings.Repeat("f0", 32))
	wrong, err := NewFileStore(path, other)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.Get(ctx, "deezer", "main", "alice"); err == nil {
		t.Error("expected failure with the wrong key")
	}
}

func TestNewFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path, nil); err == nil {
		t.Error("expected parse error")
	}
	if _, err := NewFileStore("", nil); err == nil {
		t.Error("expected missing path error")
	}
}
