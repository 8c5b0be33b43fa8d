package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/credmigrator/internal/flagx"
	"github.com/joho/godotenv"
)

// loadEnv first seeds the process environment from a dotenv file (-env, or
// ./.env when present; variables already set win) and then copies the
// recognised variables into config. Unset variables leave config untouched.
func loadEnv(config *Config, args []string, getenv func(string) string) error {
	if path := flagx.EnvFileFlag(args); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if v := getenv(EnvMongoURI); v != "" {
		config.MongoURI = v
	}
	if v := getenv(EnvDatabaseURI); v != "" {
		config.DatabaseURI = v
	}
	if v := getenv(EnvBuyerDefaultPassword); v != "" {
		config.BuyerDefaultPassword = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		config.LogLevel = v
	}
	return nil
}
