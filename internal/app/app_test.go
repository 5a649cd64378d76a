package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/server"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBareApp(adminAddr string) *App {
	handler := wire.HandlerFunc(func(context.Context, *wire.Request) *wire.Response {
		return wire.Message(http.StatusOK, "ok")
	})
	return &App{
		cfg:    &Config{AdminAddress: adminAddr},
		Logger: zap.NewNop(),
		Server: server.New(handler, server.Options{Addr: "127.0.0.1:0", Workers: 1}, nil),
		Admin: &http.Server{
			Addr:    adminAddr,
			Handler: http.NotFoundHandler(),
		},
	}
}

func TestRunFailsFastWhenAdminAddressIsTaken(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	a := newBareApp(taken.Addr().String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err = a.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin listener")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunStopsCleanlyWithAdmin(t *testing.T) {
	a := newBareApp("127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
