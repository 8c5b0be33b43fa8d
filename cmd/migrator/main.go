package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/credmigrator/internal/app"
	"github.com/dmitrijs2005/credmigrator/internal/config"
	"github.com/dmitrijs2005/credmigrator/internal/logging"
)

func main() {
	ctx, stop := app.WithSignals(context.Background())

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.NewJSONLogger(os.Stdout, "info").Error(ctx, "config error", "error", err)
		stop()
		os.Exit(app.ExitFatal)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	code := app.NewApp(cfg, logger).Run(ctx)

	stop()
	os.Exit(code)
}
