// Package config loads the process-level configuration described in
// SPEC_FULL.md §4.11: the log level and the object-store cache size.
// Grounded on the teacher's internal/config/config.go load-with-fallback
// shape, trimmed to the two settings this engine actually has.
package config

import (
	"encoding/json"
	"os"
)

// Config holds the settings an optional .minigit/config.json may override.
type Config struct {
	LogLevel  string `json:"log_level"`
	CacheSize int    `json:"cache_size"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{LogLevel: "info", CacheSize: 256}
}

// Load reads path if present, applying Default() for any field a partial
// file omits. A missing file is not an error: it simply yields Default().
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
