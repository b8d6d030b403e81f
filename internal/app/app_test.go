package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireboard-server/internal/client"
	"github.com/vovakirdan/wireboard-server/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return &cfg
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunServesAndShutsDown(t *testing.T) {
	var logs syncBuffer
	logger := zerolog.New(&logs)
	a, err := New(context.Background(), testConfig(), &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	base := fmt.Sprintf("http://%s", a.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, err := client.Dial(dialCtx, fmt.Sprintf("ws://%s/ws", a.Addr()))
	require.NoError(t, err)
	connErr := make(chan error, 1)
	go func() { connErr <- conn.Run(context.Background()) }()
	require.NoError(t, conn.WaitSynced(dialCtx))

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "wireboard_connected_clients 1")

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, logs.String(), `"users":1,"message":"session state at shutdown"`)

	select {
	case err := <-connErr:
		assert.Error(t, err, "server shutdown closes the socket with going away")
	case <-time.After(3 * time.Second):
		t.Fatal("client was not disconnected on shutdown")
	}
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	logger := zerolog.Nop()
	cfg := testConfig()
	cfg.Tap.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init tap")
}

func TestNewFailsOnBusyAddress(t *testing.T) {
	logger := zerolog.Nop()
	first, err := New(context.Background(), testConfig(), &logger)
	require.NoError(t, err)
	defer first.listener.Close()

	cfg := testConfig()
	cfg.Addr = first.Addr().String()
	_, err = New(context.Background(), cfg, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
