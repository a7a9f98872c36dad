package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/peerchat/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-t string     tracker address
//	-a string     listen address for hosted channels
//	-p string     advertised IP
//	-s string     cache directory
//	-k string     cache store, json or sqlite
//	-q string     SQLite DSN
//	-r duration   request timeout
//	-j duration   join timeout
//	-x duration   tracker timeout
//	-m int        max connections per hosted channel
//	-w string     welcome message
//	-l string     log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-t", "-a", "-p", "-s", "-k", "-q", "-r", "-j", "-x", "-m", "-w", "-l"})

	fs := flag.NewFlagSet("peer", flag.ContinueOnError)

	fs.StringVar(&config.TrackerAddr, "t", config.TrackerAddr, "tracker address")
	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "listen address for hosted channels")
	fs.StringVar(&config.AdvertiseIP, "p", config.AdvertiseIP, "IP announced to the tracker")
	fs.StringVar(&config.CacheDir, "s", config.CacheDir, "cache directory")
	fs.StringVar(&config.CacheStore, "k", config.CacheStore, "cache store (json or sqlite)")
	fs.StringVar(&config.SQLiteDSN, "q", config.SQLiteDSN, "SQLite DSN")
	fs.DurationVar(&config.RequestTimeout, "r", config.RequestTimeout, "request timeout")
	fs.DurationVar(&config.JoinTimeout, "j", config.JoinTimeout, "join timeout")
	fs.DurationVar(&config.TrackerTimeout, "x", config.TrackerTimeout, "tracker timeout")
	fs.IntVar(&config.MaxConnections, "m", config.MaxConnections, "max connections per hosted channel")
	fs.StringVar(&config.WelcomeMessage, "w", config.WelcomeMessage, "welcome message")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
