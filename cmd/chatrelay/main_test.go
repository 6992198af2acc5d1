package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "chatrelay dev")
}

func TestServeCmd_Flags(t *testing.T) {
	req := require.New(t)
	cmd := serveCmd()

	req.NoError(cmd.ParseFlags([]string{"--port", "5000", "--log-level", "debug"}))
	req.True(cmd.Flags().Changed("port"))
	port, err := cmd.Flags().GetInt("port")
	req.NoError(err)
	req.Equal(5000, port)
}

// TestRun_Stops_On_Context_Cancel starts the relay on a free port and checks
// that cancelling the parent context shuts it down cleanly.
func TestRun_Stops_On_Context_Cancel(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)
	cfg.ShutdownTimeout = 2 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", cfg.Addr())
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
