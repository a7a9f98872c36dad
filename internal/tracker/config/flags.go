package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/peerchat/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string     listen address (e.g., "127.0.0.1:22236")
//	-d string     PostgreSQL DSN, empty for in-memory accounts
//	-s string     token HMAC secret
//	-t duration   token validity (e.g., "12h")
//	-i duration   idle connection timeout
//	-l string     log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-i", "-l"})

	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.TokenValidityDuration, "t", config.TokenValidityDuration, "token validity duration")
	fs.DurationVar(&config.IdleTimeout, "i", config.IdleTimeout, "idle connection timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
