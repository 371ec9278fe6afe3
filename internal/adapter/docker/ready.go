package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

type pinger interface {
	Ping(ctx context.Context) (types.Ping, error)
}

// WaitReady blocks until the daemon answers a ping. Connection failures are
// retried every interval; any other error is returned.
func WaitReady(ctx context.Context, cli pinger, interval time.Duration) error {
	log := slog.With("component", "docker")
	if interval <= 0 {
		interval = time.Second
	}

	waiting := false
	for {
		_, err := cli.Ping(ctx)
		if err == nil {
			if waiting {
				log.Debug("daemon reachable")
			}
			return nil
		}
		if !client.IsErrConnectionFailed(err) {
			log.Error("ping failed", "err", err)
			return fmt.Errorf("connect to docker daemon: %w", err)
		}
		if !waiting {
			waiting = true
			log.Debug("waiting for docker daemon")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("docker daemon not reachable: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}
