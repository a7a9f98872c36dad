package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/peerchat/internal/flagx"
	"github.com/dmitrijs2005/peerchat/internal/timex"
)

// JsonConfig is the on-disk shape of the peer configuration. Absent fields
// keep their current value.
type JsonConfig struct {
	TrackerAddr    *string         `json:"tracker_addr"`
	ListenAddr     *string         `json:"listen_addr"`
	AdvertiseIP    *string         `json:"advertise_ip"`
	CacheDir       *string         `json:"cache_dir"`
	CacheStore     *string         `json:"cache_store"`
	SQLiteDSN      *string         `json:"sqlite_dsn"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	JoinTimeout    *timex.Duration `json:"join_timeout"`
	TrackerTimeout *timex.Duration `json:"tracker_timeout"`
	MaxConnections *int            `json:"max_connections"`
	WelcomeMessage *string         `json:"welcome_message"`
	LogLevel       *string         `json:"log_level"`
}

func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.TrackerAddr, c.TrackerAddr)
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.AdvertiseIP, c.AdvertiseIP)
	setString(&config.CacheDir, c.CacheDir)
	setString(&config.CacheStore, c.CacheStore)
	setString(&config.SQLiteDSN, c.SQLiteDSN)
	setString(&config.WelcomeMessage, c.WelcomeMessage)
	setString(&config.LogLevel, c.LogLevel)

	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.JoinTimeout != nil {
		config.JoinTimeout = c.JoinTimeout.Duration
	}
	if c.TrackerTimeout != nil {
		config.TrackerTimeout = c.TrackerTimeout.Duration
	}
	if c.MaxConnections != nil {
		config.MaxConnections = *c.MaxConnections
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
