package app

import "github.com/dmitrijs2005/credmigrator/internal/config"

// Target is one collection to migrate and its fallback plaintext.
type Target struct {
	Name             string
	Collection       string
	DefaultPlaintext *string
}

// Targets lists the configured collections in migration order: admins
// first, then buyers. A target with an empty collection name is disabled.
func Targets(cfg *config.Config) []Target {
	var targets []Target

	if cfg.AdminsCollection != "" {
		targets = append(targets, Target{Name: "admins", Collection: cfg.AdminsCollection})
	}
	if cfg.BuyersCollection != "" {
		t := Target{Name: "buyers", Collection: cfg.BuyersCollection}
		if cfg.BuyerDefaultPassword != "" {
			def := cfg.BuyerDefaultPassword
			t.DefaultPlaintext = &def
		}
		targets = append(targets, t)
	}
	return targets
}
