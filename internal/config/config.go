package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App is one application's credentials and callback target for a bot.
// It is selected once when a client is built and never mutated.
type App struct {
	Name        string `yaml:"name"`
	AppID       string `yaml:"app_id"`
	AppSecret   string `yaml:"app_secret"`
	RedirectURI string `yaml:"redirect_uri"`
	Scopes      string `yaml:"scopes"`
}

// ScopeList splits the comma-separated Scopes field, dropping blanks.
func (a App) ScopeList() []string {
	return SplitScopes(a.Scopes)
}

func (a App) validate() error {
	switch {
	case a.Name == "":
		return errors.New("name is required")
	case a.AppID == "":
		return errors.New("app_id is required")
	case a.AppSecret == "":
		return errors.New("app_secret is required")
	case a.RedirectURI == "":
		return errors.New("redirect_uri is required")
	}
	return nil
}

// Bot groups the applications configured for one provider binding.
type Bot struct {
	Apps []App `yaml:"apps"`
}

// File is the parsed bots configuration file.
type File struct {
	Bots map[string]Bot `yaml:"bots"`
}

// Load reads a .env file if one exists, then parses the YAML file at path.
// ${VAR} references in the file are expanded from the environment.
func Load(path string) (*File, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a bots configuration document.
func Parse(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for botName, b := range f.Bots {
		seen := make(map[string]bool, len(b.Apps))
		for i, a := range b.Apps {
			if err := a.validate(); err != nil {
				return nil, fmt.Errorf("bots.%s.apps[%d]: %w", botName, i, err)
			}
			if seen[a.Name] {
				return nil, fmt.Errorf("bots.%s.apps[%d]: duplicate app name %q", botName, i, a.Name)
			}
			seen[a.Name] = true
		}
	}
	return &f, nil
}

// App returns the named application of the named bot.
func (f *File) App(bot, name string) (App, error) {
	b, ok := f.Bots[bot]
	if !ok {
		return App{}, fmt.Errorf("bot %q is not configured", bot)
	}
	for _, a := range b.Apps {
		if a.Name == name {
			return a, nil
		}
	}
	return App{}, fmt.Errorf("app %q is not configured for bot %q", name, bot)
}

// SplitScopes parses a comma-separated scope list.
func SplitScopes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
