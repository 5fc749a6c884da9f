package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files with priority: .env.local > .env
// godotenv.Load does NOT overwrite already-set env vars,
// so OS env vars always win, .env.local wins over .env.
// Returns list of files actually loaded.
func LoadDotEnv(dir string) []string {
	candidates := []string{".env.local", ".env"}
	var loaded []string
	for _, f := range candidates {
		path := f
		if dir != "" {
			path = dir + string(os.PathSeparator) + f
		}
		if _, err := os.Stat(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
