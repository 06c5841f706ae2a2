package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultConfigPath = "bots.yaml"
	defaultStore      = "file"
	defaultRedisAddr  = "localhost:6379"
)

// Settings are the process-level options read from the environment.
type Settings struct {
	ConfigPath  string
	Store       string
	RedisAddr   string
	RedisDB     int
	DatabaseURL string
	// TokenFile is the file store's path; empty means the user config dir.
	TokenFile string
	// RootKey is a 64 hex char AES-256 key; tokens are stored in plain text when empty.
	RootKey  string
	LogLevel string
}

// FromEnv reads Settings from environment variables, applying defaults.
// Variables from a .env file fill in what the environment leaves unset.
func FromEnv() (Settings, error) {
	_ = godotenv.Load()

	s := Settings{
		ConfigPath:  getEnv("BOTKIT_CONFIG", defaultConfigPath),
		Store:       getEnv("BOTKIT_STORE", defaultStore),
		RedisAddr:   getEnv("REDIS_ADDR", defaultRedisAddr),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		TokenFile:   os.Getenv("BOTKIT_TOKEN_FILE"),
		RootKey:     os.Getenv("ROOT_ENCRYPTION_KEY"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	db, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	s.RedisDB = db

	if s.Store == "postgres" && s.DatabaseURL == "" {
		return Settings{}, fmt.Errorf("DATABASE_URL is required when BOTKIT_STORE=postgres")
	}
	return s, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
