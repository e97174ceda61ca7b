package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/broadcast"
)

func TestParseConfigDefaults(t *testing.T) {
	requireT := require.New(t)

	config, err := parseConfig(nil)
	requireT.NoError(err)
	requireT.Equal(broadcast.DefaultConfig(), config)
}

func TestParseConfigFlagsOverrideFile(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "broadcast.toml")
	requireT.NoError(os.WriteFile(path, []byte(`
port = 5000
broadcast_address = "192.168.1.255"
instance_id = "from-file"
`), 0o600))

	config, err := parseConfig([]string{
		"--config", path,
		"--instance-id", "from-flag",
		"--heartbeat-interval", "2s",
		"--loopback",
	})
	requireT.NoError(err)
	requireT.Equal(5000, config.Port)
	requireT.Equal("192.168.1.255", config.BroadcastAddress)
	requireT.Equal("from-flag", config.InstanceID)
	requireT.Equal(2*time.Second, config.HeartbeatInterval)
	requireT.True(config.Loopback)
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	_, err := parseConfig([]string{"--port", "70000"})
	require.Error(t, err)

	_, err = parseConfig([]string{"--unknown"})
	require.Error(t, err)
}
