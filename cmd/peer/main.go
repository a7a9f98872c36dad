package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/peerchat/internal/cli"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/peer/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	// The REPL owns stdout, so the log goes to stderr.
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	app := cli.NewApp(cfg, logger)
	app.Run(ctx)

}
