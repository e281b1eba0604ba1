// Package status resolves the live status of a Minecraft server.
//
// The Engine probes a host as a Java server (Server List Ping merged with the
// Query protocol) and falls back to the Bedrock ping. When nothing answers it
// returns a synthesized offline result; it never fails.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/woozymasta/mcstatus/internal/game"
)

// ErrUnreachable marks a protocol source that produced no status.
var ErrUnreachable = errors.New("server unreachable")

// Prober speaks the status protocols. *game.Client implements it.
type Prober interface {
	PingJava(ctx context.Context, host string, port uint16) (*game.JavaStatus, error)
	QueryFull(ctx context.Context, host string, port uint16) (*game.FullStat, error)
	PingBedrock(ctx context.Context, host string, port uint16) (*game.BedrockStatus, error)
}

// PortResolver picks the Java connect port of a host. *resolver.Resolver implements it.
type PortResolver interface {
	Resolve(ctx context.Context, host string, explicitPort uint16) uint16
}

// contain runs fn and converts a panic into an error.
func contain[T any](fn func() (T, error)) (res T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			res, err = zero, fmt.Errorf("panic: %v", rec)
		}
	}()

	return fn()
}
