package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dotenvFiles are loaded into the process environment before it is parsed.
// Variables that are already set win over the file.
var dotenvFiles = []string{".env"}

// parseEnv overlays TASKKEEPER_* environment variables onto config. Unset
// variables leave the current value untouched.
func parseEnv(config *Config) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}
