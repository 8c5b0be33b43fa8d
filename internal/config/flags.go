package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/credmigrator/internal/flagx"
)

// parseFlags overlays Config fields from short command-line flags.
//
// Supported flags:
//
//	-b string     store backend ("mongo" or "postgres")
//	-n string     Mongo database name
//	-a string     admins collection
//	-u string     buyers collection
//	-k int        cursor batch size
//	-t duration   per-record timeout (e.g. "30s")
//	-f            abort a collection on its first failing record
//	-l string     log level
//
// Connection strings are read only from the environment or the config file.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-b", "-n", "-a", "-u", "-k", "-t", "-f", "-l"})

	fs := flag.NewFlagSet("migrator", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.Backend, "b", config.Backend, "store backend")
	fs.StringVar(&config.Database, "n", config.Database, "mongo database name")
	fs.StringVar(&config.AdminsCollection, "a", config.AdminsCollection, "admins collection")
	fs.StringVar(&config.BuyersCollection, "u", config.BuyersCollection, "buyers collection")
	fs.IntVar(&config.BatchSize, "k", config.BatchSize, "cursor batch size")
	fs.DurationVar(&config.RecordTimeout, "t", config.RecordTimeout, "per-record timeout")
	fs.BoolVar(&config.FailFast, "f", config.FailFast, "abort on first failing record")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
