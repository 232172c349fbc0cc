package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/infrastructure/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{
		HTTPPort:         "9090",
		HTTPReadTimeout:  3 * time.Second,
		HTTPWriteTimeout: 4 * time.Second,
		HTTPIdleTimeout:  5 * time.Second,
	}
	h := http.NewServeMux()

	server := newHTTPServer(cfg, h)

	if server.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %s", server.Addr)
	}
	if server.ReadTimeout != 3*time.Second || server.ReadHeaderTimeout != 3*time.Second {
		t.Fatalf("unexpected read timeouts %s/%s", server.ReadTimeout, server.ReadHeaderTimeout)
	}
	if server.WriteTimeout != 4*time.Second {
		t.Fatalf("unexpected write timeout %s", server.WriteTimeout)
	}
	if server.IdleTimeout != 5*time.Second {
		t.Fatalf("unexpected idle timeout %s", server.IdleTimeout)
	}
	if server.Handler != h {
		t.Fatal("expected handler to be wired")
	}
}

func TestRunWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	runWorker(ctx, zerolog.Nop(), "test", func(ctx context.Context) error {
		called = true
		return ctx.Err()
	})
	if !called {
		t.Fatal("expected worker to be started")
	}

	runWorker(context.Background(), zerolog.Nop(), "failing", func(context.Context) error {
		return errors.New("boom")
	})
}
