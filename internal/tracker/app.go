package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/tracker/accounts"
	"github.com/dmitrijs2005/peerchat/internal/tracker/config"
)

// App wires the tracker's account store, registry and TCP server.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *Server
}

// openPostgres is a seam for tests.
var openPostgres = accounts.OpenPostgres

// NewApp builds the tracker. A non-empty DatabaseDSN keeps accounts in
// PostgreSQL, otherwise they live in memory.
func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	app := &App{config: c, logger: l}

	var repo accounts.Repository
	if c.DatabaseDSN != "" {
		db, err := openPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.db = db
		repo = accounts.NewPostgresRepository(db)
	} else {
		l.Warn(ctx, "no database configured, accounts are kept in memory")
		repo = accounts.NewMemoryRepository()
	}

	app.server = NewServer(c, l, NewRegistry(repo))
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or the process gets SIGINT/SIGTERM.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "closing database", "error", cerr)
		}
	}
	return err
}
