package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App satisfies it;
// tests provide a stub.
type execIface interface {
	isSignedIn() bool
	SignIn(ctx context.Context) error
	SignUp(ctx context.Context) error
	Guest(ctx context.Context, name string) error
	SignOut(ctx context.Context) error
	List(ctx context.Context) error
	Channels(ctx context.Context) error
	Join(ctx context.Context, channel string) error
	Leave(ctx context.Context, channel string) error
	Send(ctx context.Context, channel, text string) error
	Show(ctx context.Context, channel string) error
	Host(ctx context.Context, channel string, public bool) error
	View(ctx context.Context, channel string, public bool) error
	Info(ctx context.Context, channel string) error
	Invisible(ctx context.Context, channel string, on bool) error
	Authorize(ctx context.Context, channel, user string, add bool) error
	Debug(ctx context.Context, channel string) error
}

// commandGuard serializes commands with shutdown. exclusive reports false
// once the session has been torn down.
type commandGuard interface {
	exclusive(fn func()) bool
}

const (
	helpSignedOut = "Available commands: signin, signup, guest [name], list, exit"
	helpSignedIn  = "Available commands: list, channels, join <ch>, leave <ch>, send <ch> <text>, show <ch>, " +
		"host <ch> [public|private], view <ch> public|private, info <ch>, invisible <ch> on|off, " +
		"authorize <ch> <user>, revoke <ch> <user>, debug <ch>, signout, exit"
)

// runREPL reads commands from scanner until EOF or "exit"/"quit" and
// dispatches them to a. Command errors are printed and the loop goes on.
//
// Commands that need a session are refused until signin, signup or guest
// succeeds.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("peerchat %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		if err := ctx.Err(); err != nil {
			return
		}

		run := func() {
			if err := dispatch(ctx, a, cmd, args); err != nil {
				printlnFn("error:", err)
			}
		}
		if g, ok := a.(commandGuard); ok {
			if !g.exclusive(run) {
				return
			}
		} else {
			run()
		}
	}
}

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isSignedIn() {
			printlnFn(helpSignedIn)
		} else {
			printlnFn(helpSignedOut)
		}
		return nil
	case "signin", "login":
		return a.SignIn(ctx)
	case "signup", "register":
		return a.SignUp(ctx)
	case "guest":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return a.Guest(ctx, name)
	case "l", "list":
		return a.List(ctx)
	}

	if !a.isSignedIn() {
		printlnFn("Sign in first (signin, signup or guest). Unknown or unavailable command:", cmd)
		return nil
	}

	switch cmd {
	case "signout", "logout":
		return a.SignOut(ctx)
	case "channels":
		return a.Channels(ctx)
	case "join":
		if len(args) != 1 {
			return usageError("join <channel>")
		}
		return a.Join(ctx, args[0])
	case "leave":
		if len(args) != 1 {
			return usageError("leave <channel>")
		}
		return a.Leave(ctx, args[0])
	case "send":
		if len(args) < 2 {
			return usageError("send <channel> <text>")
		}
		return a.Send(ctx, args[0], strings.Join(args[1:], " "))
	case "show":
		if len(args) != 1 {
			return usageError("show <channel>")
		}
		return a.Show(ctx, args[0])
	case "host":
		if len(args) < 1 || len(args) > 2 {
			return usageError("host <channel> [public|private]")
		}
		public := true
		if len(args) == 2 {
			var ok bool
			if public, ok = parseVisibility(args[1]); !ok {
				return usageError("host <channel> [public|private]")
			}
		}
		return a.Host(ctx, args[0], public)
	case "view":
		if len(args) != 2 {
			return usageError("view <channel> public|private")
		}
		public, ok := parseVisibility(args[1])
		if !ok {
			return usageError("view <channel> public|private")
		}
		return a.View(ctx, args[0], public)
	case "info":
		if len(args) != 1 {
			return usageError("info <channel>")
		}
		return a.Info(ctx, args[0])
	case "invisible":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			return usageError("invisible <channel> on|off")
		}
		return a.Invisible(ctx, args[0], args[1] == "on")
	case "authorize", "revoke":
		if len(args) != 2 {
			return usageError(cmd + " <channel> <user>")
		}
		return a.Authorize(ctx, args[0], args[1], cmd == "authorize")
	case "debug":
		if len(args) != 1 {
			return usageError("debug <channel>")
		}
		return a.Debug(ctx, args[0])
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}

func parseVisibility(s string) (public bool, ok bool) {
	switch s {
	case "public":
		return true, true
	case "private":
		return false, true
	}
	return false, false
}
