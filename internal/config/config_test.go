package config

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, BackendMongo, c.Backend)
	assert.Equal(t, "Admins", c.AdminsCollection)
	assert.Equal(t, "buyers", c.BuyersCollection)
	assert.Equal(t, "id", c.KeyField)
	assert.Equal(t, "email", c.IdentifierField)
	assert.Equal(t, "password", c.CredentialField)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, 10*time.Second, c.ConnectTimeout)
	assert.Equal(t, 30*time.Second, c.RecordTimeout)
	assert.False(t, c.FailFast)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.MongoURI)
	assert.Empty(t, c.BuyerDefaultPassword)
}

func TestLoad_BareRunReadsEnvironment(t *testing.T) {
	c, err := Load(nil, envOf(map[string]string{
		EnvMongoURI:             "mongodb://db:27017/shop",
		EnvBuyerDefaultPassword: "Default123!",
	}))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017/shop", c.MongoURI)
	assert.Equal(t, "mongodb://db:27017/shop", c.ConnectionString())
	assert.Equal(t, "Default123!", c.BuyerDefaultPassword)
	require.NoError(t, c.Validate())
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	c, err := Load([]string{"-b", "postgres", "-f", "-l", "debug"}, envOf(map[string]string{
		EnvDatabaseURI: "postgres://u:p@db/shop",
		EnvLogLevel:    "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, c.Backend)
	assert.Equal(t, "postgres://u:p@db/shop", c.ConnectionString())
	assert.True(t, c.FailFast)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.LoadDefaults()
		c.MongoURI = "mongodb://localhost"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "no uri", mutate: func(c *Config) { c.MongoURI = "" }, wantErr: common.ErrMissingConnectionString},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Backend = BackendPostgres }, wantErr: common.ErrMissingConnectionString},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "redis" }, wantErr: common.ErrUnknownBackend},
		{name: "cost too low", mutate: func(c *Config) { c.BcryptCost = 2 }},
		{name: "cost too high", mutate: func(c *Config) { c.BcryptCost = 40 }},
		{name: "hashed default", mutate: func(c *Config) { c.BuyerDefaultPassword = "$2b$10$abc" }},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.RecordTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			switch {
			case tt.name == "ok":
				require.NoError(t, err)
			case tt.wantErr != nil:
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			default:
				require.Error(t, err)
			}
		})
	}
}
