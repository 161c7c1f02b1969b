// Package config resolves runtime settings from defaults, an optional .env
// file and the environment. Command-line flags override the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvDB     = "DUSTGATHERER_DB"
	EnvImages = "DUSTGATHERER_IMAGES"
	EnvAddr   = "DUSTGATHERER_ADDR"
	EnvLog    = "DUSTGATHERER_LOG"
)

// Config holds the settings shared by every subcommand.
type Config struct {
	DBPath    string
	ImagesDir string
	Addr      string
	// LogPath is empty when logs go to stdout/stderr only.
	LogPath string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:    "dustgatherer.sqlite3",
		ImagesDir: "images",
		Addr:      ":8080",
	}
}

// Load reads envFile, if it exists, into the process environment without
// overriding variables that are already set, then returns FromEnv.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv), nil
}

// FromEnv applies environment overrides to Default.
func FromEnv(lookup func(string) (string, bool)) Config {
	cfg := Default()
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.DBPath, EnvDB)
	set(&cfg.ImagesDir, EnvImages)
	set(&cfg.Addr, EnvAddr)
	set(&cfg.LogPath, EnvLog)
	return cfg
}
