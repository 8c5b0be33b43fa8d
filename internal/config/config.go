// Package config assembles the migrator configuration from built-in
// defaults, an optional JSON file, the process environment (optionally
// seeded from a dotenv file) and finally short command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/hashing"
	"golang.org/x/crypto/bcrypt"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Environment variables read by loadEnv.
const (
	EnvMongoURI             = "MONGO_URI"
	EnvDatabaseURI          = "DATABASE_URI"
	EnvBuyerDefaultPassword = "BUYER_DEFAULT_PASSWORD"
	EnvLogLevel             = "LOG_LEVEL"
)

// Config holds runtime settings for one migration run.
//
// Fields:
//   - Backend: "mongo" or "postgres".
//   - MongoURI / DatabaseURI: connection strings, normally from the environment.
//   - Database: Mongo database name; empty means the one named in MongoURI.
//   - AdminsCollection / BuyersCollection: collections (or tables) to migrate.
//   - BuyerDefaultPassword: plaintext assigned to buyers without a password.
//     Empty disables substitution, buyers then behave like admins.
//   - KeyField / IdentifierField / CredentialField: record field (or column)
//     names. KeyField only matters for the postgres backend, Mongo always
//     keys on _id.
//   - BcryptCost: bcrypt work factor.
//   - BatchSize: cursor batch size.
//   - ConnectTimeout / RecordTimeout: bounds for connecting and for each record.
//   - FailFast: abort a collection on the first record failure.
type Config struct {
	Backend              string
	MongoURI             string
	DatabaseURI          string
	Database             string
	AdminsCollection     string
	BuyersCollection     string
	BuyerDefaultPassword string
	KeyField             string
	IdentifierField      string
	CredentialField      string
	BcryptCost           int
	BatchSize            int
	ConnectTimeout       time.Duration
	RecordTimeout        time.Duration
	FailFast             bool
	LogLevel             string
}

// LoadDefaults populates Config with the values the shop deployment uses.
func (c *Config) LoadDefaults() {
	c.Backend = BackendMongo
	c.AdminsCollection = "Admins"
	c.BuyersCollection = "buyers"
	c.KeyField = "id"
	c.IdentifierField = "email"
	c.CredentialField = "password"
	c.BcryptCost = 10
	c.BatchSize = 100
	c.ConnectTimeout = 10 * time.Second
	c.RecordTimeout = 30 * time.Second
	c.LogLevel = "info"
}

// ConnectionString returns the connection string of the selected backend.
func (c *Config) ConnectionString() string {
	if c.Backend == BackendPostgres {
		return c.DatabaseURI
	}
	return c.MongoURI
}

// Validate reports the first setting that makes a run impossible.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMongo, BackendPostgres:
	default:
		return fmt.Errorf("%w: %q", common.ErrUnknownBackend, c.Backend)
	}
	if c.ConnectionString() == "" {
		env := EnvMongoURI
		if c.Backend == BackendPostgres {
			env = EnvDatabaseURI
		}
		return fmt.Errorf("%w: set %s", common.ErrMissingConnectionString, env)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if strings.HasPrefix(c.BuyerDefaultPassword, hashing.Marker) {
		return fmt.Errorf("buyer default password must be plaintext")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.RecordTimeout <= 0 {
		return fmt.Errorf("record timeout must be positive, got %s", c.RecordTimeout)
	}
	return nil
}

// Load builds a Config from args (without the program name) and getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := loadEnv(cfg, args, getenv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the real command line and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.Getenv)
}
