// Package game implements the Minecraft status protocols: Java Server List Ping,
// the Java Query protocol (full stat) and the Bedrock unconnected ping.
//
// Every call opens its own connection and closes it before returning.
// Calls are bounded by the per-protocol timeout and by the caller's context.
package game

import (
	"context"
	"net"
	"time"

	"github.com/woozymasta/mcstatus/internal/config"
)

// Client holds protocol settings. It keeps no connection state and is safe for concurrent use.
type Client struct {
	PingTimeout     time.Duration
	QueryTimeout    time.Duration
	BedrockTimeout  time.Duration
	ProtocolVersion int32
}

// NewClient creates a Client from the resolve options.
func NewClient(cfg config.Resolve) *Client {
	return &Client{
		PingTimeout:     cfg.PingTimeout,
		QueryTimeout:    cfg.QueryTimeout,
		BedrockTimeout:  cfg.BedrockTimeout,
		ProtocolVersion: int32(cfg.ProtocolVersion),
	}
}

// withTimeout bounds ctx by d; a zero d keeps only the caller's bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// dial opens a connection whose deadline follows ctx; cancelling ctx unblocks pending I/O.
// The returned release func must be called before closing the connection.
func dial(ctx context.Context, network, addr string) (net.Conn, func(), error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})

	return conn, func() { stop() }, nil
}
