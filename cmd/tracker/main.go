package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/tracker"
	"github.com/dmitrijs2005/peerchat/internal/tracker/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	app, err := tracker.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
