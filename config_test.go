package broadcast_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/broadcast"
	"github.com/outofforest/broadcast/wire"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "broadcast.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	requireT := require.New(t)

	cfg := broadcast.DefaultConfig()
	requireT.NoError(cfg.Validate())
	requireT.Equal(4445, cfg.Port)
	requireT.EqualValues(1024, cfg.DatagramBufferSize)
	requireT.Equal(3*time.Second, cfg.PayloadExpiration)
	requireT.Equal(6*time.Second, cfg.CleanupInterval)
	requireT.Equal("255.255.255.255:4445", cfg.TargetAddress())
}

func TestValidateRejectsTooSmallBuffer(t *testing.T) {
	cfg := broadcast.DefaultConfig()
	cfg.DatagramBufferSize = wire.HeaderSize
	require.ErrorIs(t, cfg.Validate(), wire.ErrFrameTooSmall)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *broadcast.Config)
	}{
		{name: "port", mutate: func(cfg *broadcast.Config) { cfg.Port = 0 }},
		{name: "address", mutate: func(cfg *broadcast.Config) { cfg.BroadcastAddress = "nowhere" }},
		{name: "huge buffer", mutate: func(cfg *broadcast.Config) { cfg.DatagramBufferSize = 70000 }},
		{name: "expiration", mutate: func(cfg *broadcast.Config) { cfg.PayloadExpiration = 0 }},
		{name: "cleanup", mutate: func(cfg *broadcast.Config) { cfg.CleanupInterval = -time.Second }},
		{name: "heartbeat", mutate: func(cfg *broadcast.Config) { cfg.HeartbeatInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := broadcast.DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	requireT := require.New(t)

	cfg, err := broadcast.LoadConfig(writeConfig(t, `
port = 5000
broadcast_address = "192.168.1.255"
payload_expiration = "1500ms"
heartbeat_interval = "2s"
instance_id = " node-a "
loopback = true
`))
	requireT.NoError(err)
	requireT.Equal(5000, cfg.Port)
	requireT.Equal("192.168.1.255", cfg.BroadcastAddress)
	requireT.Equal(1500*time.Millisecond, cfg.PayloadExpiration)
	requireT.Equal(2*time.Second, cfg.HeartbeatInterval)
	requireT.Equal("node-a", cfg.InstanceID)
	requireT.True(cfg.Loopback)

	// Not defined in the file.
	requireT.EqualValues(1024, cfg.DatagramBufferSize)
	requireT.Equal(6*time.Second, cfg.CleanupInterval)
	requireT.True(cfg.ResolveHostnames)
}

func TestLoadConfigErrors(t *testing.T) {
	requireT := require.New(t)

	_, err := broadcast.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	requireT.Error(err)

	_, err = broadcast.LoadConfig(writeConfig(t, `cleanup_interval = "soon"`))
	requireT.Error(err)

	_, err = broadcast.LoadConfig(writeConfig(t, `colour = "blue"`))
	requireT.Error(err)

	_, err = broadcast.LoadConfig(writeConfig(t, `datagram_buffer_size = 16`))
	requireT.ErrorIs(err, wire.ErrFrameTooSmall)
}
