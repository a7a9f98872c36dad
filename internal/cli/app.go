package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/peer/client"
	"github.com/dmitrijs2005/peerchat/internal/peer/config"
	"github.com/dmitrijs2005/peerchat/internal/peer/host"
	"github.com/dmitrijs2005/peerchat/internal/trackerclient"
)

// App is one interactive peer: a channel client plus the channels it hosts.
// Commands run on the REPL goroutine only.
type App struct {
	config  *config.Config
	logger  logging.Logger
	tracker *trackerclient.Client
	reader  *bufio.Reader
	out     io.Writer

	client *client.Client
	store  io.Closer
	hosts  map[string]*host.Host

	// turn is held by the running command or by shutdown.
	turn   chan struct{}
	closed bool
}

// shutdownGrace bounds how long shutdown waits for a running command, such
// as one blocked on a terminal prompt.
var shutdownGrace = 5 * time.Second

func NewApp(c *config.Config, l logging.Logger) *App {
	return &App{
		config:  c,
		logger:  l.With("module", "cli"),
		tracker: trackerclient.New(c.TrackerAddr, c.TrackerTimeout),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		hosts:   make(map[string]*host.Host),
		turn:    make(chan struct{}, 1),
	}
}

func (a *App) exclusive(fn func()) bool {
	a.turn <- struct{}{}
	defer func() { <-a.turn }()
	if a.closed {
		return false
	}
	fn()
	return true
}

// shutdown waits for the running command, if any, then closes the session.
// If the command outlasts shutdownGrace the session is left to process exit.
func (a *App) shutdown(ctx context.Context) {
	select {
	case a.turn <- struct{}{}:
	case <-time.After(shutdownGrace):
		a.logger.Warn(ctx, "command still running, skipping session cleanup")
		return
	}
	defer func() { <-a.turn }()
	a.closed = true
	a.endSession(ctx)
}

func (a *App) clientOptions() client.Options {
	return client.Options{
		RequestTimeout: a.config.RequestTimeout,
		JoinTimeout:    a.config.JoinTimeout,
		OnMessage: func(channel string, m models.Message) {
			printlnFn(fmt.Sprintf("#%s %s", channel, m))
		},
	}
}

func (a *App) isSignedIn() bool {
	return a.client != nil && a.client.Session().Username != ""
}

func (a *App) getStatus() string {
	if !a.isSignedIn() {
		return ""
	}
	s := a.client.Session()
	status := s.Username
	if s.UserType == common.UserTypeGuest {
		status += " guest"
	}
	if joined := a.client.Connected(); len(joined) > 0 {
		status += " #" + strings.Join(joined, " #")
	}
	return "(" + status + ")"
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the REPL on stdin and blocks until the user exits or ctx is
// cancelled. Joined channels are closed and hosted channels stopped on the
// way out.
func (a *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	a.initSignalHandler(cancelFunc)

	printlnFn("Welcome to peerchat (type 'help' for commands)")

	done := make(chan struct{})
	go func() {
		defer close(done)
		runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	a.shutdown(context.WithoutCancel(ctx))
}
