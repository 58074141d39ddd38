package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/rbright/parley/internal/backend"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/remote"
	"github.com/rbright/parley/internal/service"
)

// Serve exposes the configured transcriber over gRPC until ctx ends.
func (r Runner) Serve(ctx context.Context, globals cli.Globals, opts cli.ServeOptions) error {
	rt, err := r.setup(globals, "serve")
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := r.service(ctx, rt, opts.Provider)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	lis, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.Listen, err)
	}
	server := grpc.NewServer()
	remote.Register(server, leasedTranscriber{svc: svc})

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(lis) }()

	variant := rt.loaded.Config.Engine.Transcription.Variant
	rt.logger.Info("serving transcription", "address", lis.Addr().String(), "variant", string(variant))
	fmt.Fprintf(r.Stderr, "serving %s transcription on %s\n", variant, lis.Addr())

	select {
	case <-ctx.Done():
		server.GracefulStop()
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// leasedTranscriber answers each call on whichever transcriber is live.
type leasedTranscriber struct {
	svc *service.Context
}

func (t leasedTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	lease, err := t.svc.Transcriber()
	if err != nil {
		return "", err
	}
	defer lease.Release()

	var text string
	err = lease.Call(ctx, func(tr backend.Transcriber) error {
		var err error
		text, err = tr.Transcribe(ctx, samples, sampleRate)
		return err
	})
	return text, err
}
