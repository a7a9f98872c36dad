// Package config handles configuration for the peer binary, which hosts
// channels and joins them as a client.
package config

import "time"

const (
	CacheStoreJSON   = "json"
	CacheStoreSQLite = "sqlite"
)

// Config holds runtime settings for a peer.
//
// Fields:
//   - TrackerAddr: host:port of the tracker.
//   - ListenAddr: bind address for hosted channels; port 0 picks a free one.
//   - AdvertiseIP: IP announced to the tracker, empty for the listener's own.
//   - CacheDir: directory of the offline message cache.
//   - CacheStore: "json" (one file per user) or "sqlite".
//   - SQLiteDSN: SQLite DSN, empty for a file in CacheDir.
//   - RequestTimeout: wait for a correlated response from a host.
//   - JoinTimeout: limit for dialing a host and completing CONNECT.
//   - TrackerTimeout: limit for one tracker request.
//   - MaxConnections: peers a hosted channel accepts at once.
//   - WelcomeMessage: seeded into a new channel, empty for none.
//   - LogLevel: one of debug, info, warn, error.
type Config struct {
	TrackerAddr    string
	ListenAddr     string
	AdvertiseIP    string
	CacheDir       string
	CacheStore     string
	SQLiteDSN      string
	RequestTimeout time.Duration
	JoinTimeout    time.Duration
	TrackerTimeout time.Duration
	MaxConnections int
	WelcomeMessage string
	LogLevel       string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.TrackerAddr = "127.0.0.1:22236"
	c.ListenAddr = "127.0.0.1:0"
	c.AdvertiseIP = ""
	c.CacheDir = "cache"
	c.CacheStore = CacheStoreJSON
	c.SQLiteDSN = ""
	c.RequestTimeout = 5 * time.Second
	c.JoinTimeout = 5 * time.Second
	c.TrackerTimeout = 5 * time.Second
	c.MaxConnections = 10
	c.WelcomeMessage = "Welcome to the channel!"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
