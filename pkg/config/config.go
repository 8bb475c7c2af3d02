// Package config decodes typed configuration structs from the process
// environment, optionally seeded from a local .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

var (
	envFileFlag string
	flagOnce    sync.Once
)

// MustNew is New, panicking on error. Intended for wiring in main.
func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return conf
}

// New exports the chosen .env file into the process environment, then
// decodes a fresh T from environment variables honoring envconfig tags.
// The file is picked from the -env flag, then the ENV_FILE variable,
// then ./.env; only the flagged path is required to exist.
func New[T any](prefix string) (*T, error) {
	if path, required := envFilePath(); path != "" {
		if err := exportEnvFile(path, required); err != nil {
			return nil, fmt.Errorf("load env file %q: %w", path, err)
		}
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &conf, nil
}

func envFilePath() (path string, required bool) {
	flagOnce.Do(func() {
		if flag.Lookup("env") == nil {
			flag.StringVar(&envFileFlag, "env", "", "path to .env file")
		}
		if !flag.Parsed() {
			flag.Parse()
		}
	})
	if p := strings.TrimSpace(envFileFlag); p != "" {
		return p, true
	}
	if p := strings.TrimSpace(os.Getenv("ENV_FILE")); p != "" {
		return p, true
	}
	return ".env", false
}

// exportEnvFile reads a dotenv-style file via viper and promotes every
// key into the environment so envconfig can see it. Keys already set in
// the environment keep their value.
func exportEnvFile(path string, required bool) error {
	info, err := os.Stat(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	for key, val := range v.AllSettings() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
