package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:22236", c.TrackerAddr)
	assert.Equal(t, "127.0.0.1:0", c.ListenAddr)
	assert.Equal(t, CacheStoreJSON, c.CacheStore)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, 10, c.MaxConnections)
	assert.NotEmpty(t, c.WelcomeMessage)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"peer"}

	c := LoadConfig()
	require.NotNil(t, c)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want, *c)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, t.TempDir(), "peer.json", map[string]any{
		"tracker_addr": "10.0.0.1:1",
		"log_level":    "warn",
	})
	os.Args = []string{"peer", "-c", path, "-t", "10.0.0.2:2"}

	c := LoadConfig()
	assert.Equal(t, "10.0.0.2:2", c.TrackerAddr)
	assert.Equal(t, "warn", c.LogLevel)
}
