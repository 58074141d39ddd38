package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/parley/internal/config"
)

// Client is a transcriber backed by a remote parley gRPC server.
type Client struct {
	conn        *grpc.ClientConn
	language    string
	callTimeout time.Duration
	concurrency int
}

// Dial connects to cfg.Endpoint and waits until the channel is ready.
func Dial(ctx context.Context, cfg config.GRPCASR) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("grpc endpoint is empty")
	}
	dialTimeout := time.Duration(cfg.DialTimeoutMS) * time.Millisecond
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial transcription grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := awaitReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for transcription grpc readiness: %w", err)
	}

	return &Client{
		conn:        conn,
		language:    cfg.Language,
		callTimeout: time.Duration(cfg.CallTimeoutMS) * time.Millisecond,
		concurrency: max(1, cfg.MaxConcurrency),
	}, nil
}

// Transcribe issues one unary call for the segment.
func (c *Client) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	req, err := encodeRequest(samples, sampleRate, c.language)
	if err != nil {
		return "", fmt.Errorf("encode transcribe request: %w", err)
	}
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, transcribeMethod, req, resp); err != nil {
		return "", fmt.Errorf("remote transcribe: %w", err)
	}
	return cleanText(resp.GetFields()["text"].GetStringValue()), nil
}

// MaxConcurrency bounds in-flight calls to the server.
func (c *Client) MaxConcurrency() int {
	return c.concurrency
}

// Close releases the channel.
func (c *Client) Close() error {
	return c.conn.Close()
}
