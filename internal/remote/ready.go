package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/rbright/parley/internal/config"
)

// awaitReady kicks conn out of idle and blocks until it is ready, shuts
// down, or ctx ends.
func awaitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		if state == connectivity.Shutdown {
			return fmt.Errorf("connection to %s shut down", conn.Target())
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("connection to %s stuck in %s: %w", conn.Target(), state, ctx.Err())
		}
	}
	return nil
}

// Probe dials cfg's endpoint and hangs up once the connection is ready.
func Probe(ctx context.Context, cfg config.GRPCASR) error {
	client, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	return client.Close()
}
