package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/display"
)

func parse(t *testing.T, role config.Role, args ...string) (*cobra.Command, *Flags) {
	f := &Flags{}
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	f.Register(cmd, role)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, f
}

func TestResolveSingleStream(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "")
	cmd, f := parse(t, config.RoleSender, "--host", "10.1.1.1", "-p", "5000", "--scale", "0.5", "--max-fps", "10")
	logCfg, streams, err := f.Resolve(cmd, config.RoleSender)
	require.NoError(t, err)

	assert.Equal(t, "info", logCfg.Level)
	require.Len(t, streams, 1)
	s := streams[0]
	assert.Equal(t, config.RoleSender, s.Role)
	assert.Equal(t, "10.1.1.1", s.RemoteHost)
	assert.Equal(t, 5000, s.RemotePort)
	assert.Equal(t, 0.5, s.Scale)
	assert.Equal(t, 10, s.MaxFPS)
	assert.Equal(t, "sender", s.Display)
}

func TestResolveDefaults(t *testing.T) {
	cmd, f := parse(t, config.RoleReceiver, "--defaults")
	_, streams, err := f.Resolve(cmd, config.RoleReceiver)
	require.NoError(t, err)
	require.Len(t, streams, 3)
	assert.Equal(t, 6000, streams[2].LocalPort)
}

func TestResolveConfigFiltersRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "warn"

[[stream]]
role = "receiver"
local_port = 4100

[[stream]]
role = "sender"
remote_host = "h"
remote_port = 4100
`), 0o644))

	t.Setenv(config.EnvLogLevel, "")
	cmd, f := parse(t, config.RoleReceiver, "--config", path)
	logCfg, streams, err := f.Resolve(cmd, config.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, "warn", logCfg.Level)
	require.Len(t, streams, 1)
	assert.Equal(t, 4100, streams[0].LocalPort)

	cmd, f = parse(t, config.RoleReceiver, "--config", path, "--log-level", "debug")
	logCfg, _, err = f.Resolve(cmd, config.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, "debug", logCfg.Level)
}

func TestResolveRejectsBadFlags(t *testing.T) {
	cmd, f := parse(t, config.RoleSender, "--quality", "0", "--scale", "2")
	_, _, err := f.Resolve(cmd, config.RoleSender)
	assert.Error(t, err)
}

func TestRunnerLifecycle(t *testing.T) {
	sink, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := sink.LocalAddr().(*net.UDPAddr).Port
	sink.Close()

	stream := config.Stream{Role: config.RoleReceiver, LocalPort: port, Timeout: 50 * time.Millisecond}
	stream.ApplyDefaults(0)

	ctx, cancel := context.WithCancel(context.Background())
	board := display.NewMemoryBoard()
	r, err := Start(ctx, []config.Stream{stream}, board, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return board.Get(stream.Display).Shown() > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	r.Wait()
	assert.NoError(t, r.Close())
}
