package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/credmigrator/internal/flagx"
	"github.com/dmitrijs2005/credmigrator/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Only keys
// present in the file override the defaults.
type JsonConfig struct {
	Backend              *string         `json:"backend"`
	MongoURI             *string         `json:"mongo_uri"`
	DatabaseURI          *string         `json:"database_uri"`
	Database             *string         `json:"database"`
	AdminsCollection     *string         `json:"admins_collection"`
	BuyersCollection     *string         `json:"buyers_collection"`
	BuyerDefaultPassword *string         `json:"buyer_default_password"`
	KeyField             *string         `json:"key_field"`
	IdentifierField      *string         `json:"identifier_field"`
	CredentialField      *string         `json:"credential_field"`
	BcryptCost           *int            `json:"bcrypt_cost"`
	BatchSize            *int            `json:"batch_size"`
	ConnectTimeout       *timex.Duration `json:"connect_timeout"`
	RecordTimeout        *timex.Duration `json:"record_timeout"`
	FailFast             *bool           `json:"fail_fast"`
	LogLevel             *string         `json:"log_level"`
}

// parseJSON overlays values from the file named by -c / -config. Without
// the flag nothing is loaded.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.Backend, c.Backend)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.DatabaseURI, c.DatabaseURI)
	setString(&config.Database, c.Database)
	setString(&config.AdminsCollection, c.AdminsCollection)
	setString(&config.BuyersCollection, c.BuyersCollection)
	setString(&config.BuyerDefaultPassword, c.BuyerDefaultPassword)
	setString(&config.KeyField, c.KeyField)
	setString(&config.IdentifierField, c.IdentifierField)
	setString(&config.CredentialField, c.CredentialField)
	setString(&config.LogLevel, c.LogLevel)
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.BatchSize != nil {
		config.BatchSize = *c.BatchSize
	}
	if c.ConnectTimeout != nil {
		config.ConnectTimeout = c.ConnectTimeout.Duration
	}
	if c.RecordTimeout != nil {
		config.RecordTimeout = c.RecordTimeout.Duration
	}
	if c.FailFast != nil {
		config.FailFast = *c.FailFast
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
