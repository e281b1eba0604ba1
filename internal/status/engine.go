package status

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/game"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/resolver"
)

// Offline result labels.
const (
	OfflineName     = "Server Offline"
	OfflineNameHTML = "<p>Server Offline</p>"
	OfflineLabel    = "Minecraft"
)

// Engine resolves ServerQuery requests. It keeps no per-request state and is safe for concurrent use.
type Engine struct {
	ports   PortResolver
	java    *JavaSource
	bedrock *BedrockSource
}

// New creates an Engine with the network resolver and protocol client built from cfg.
func New(cfg config.Resolve) *Engine {
	return NewWithDeps(resolver.New(cfg), game.NewClient(cfg))
}

// NewWithDeps creates an Engine from its collaborators.
func NewWithDeps(ports PortResolver, prober Prober) *Engine {
	return &Engine{
		ports:   ports,
		java:    NewJavaSource(prober),
		bedrock: NewBedrockSource(prober),
	}
}

// Resolve returns the status of the server described by q. Java is tried first unless
// q asks for Bedrock; Bedrock is the fallback. The result is never nil.
func (e *Engine) Resolve(ctx context.Context, q models.ServerQuery) (res *models.StatusResult) {
	logger := log.With().Str("host", q.Host).Str("family", string(q.FamilyOrDefault())).Logger()

	// last attempted endpoint, reported if a panic escapes
	lastFamily := q.FamilyOrDefault()
	lastPort := lastFamily.DefaultPort()
	if q.Port != 0 {
		lastPort = q.Port
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Status resolution panicked")
			res = Offline(q.Host, lastPort, lastFamily)
		}
	}()

	if q.FamilyOrDefault() == models.FamilyJava {
		port := e.ports.Resolve(ctx, q.Host, q.Port)
		lastPort = port

		javaRes, err := e.java.Fetch(ctx, q.Host, port, q.QueryPort)
		if err == nil {
			logger.Debug().Str("connect", javaRes.Connect).Msg("Resolved Java status")
			return javaRes
		}
		logger.Debug().Err(err).Msg("Java unreachable, trying Bedrock")
	}

	port := q.Port
	if port == 0 {
		port = models.DefaultBedrockPort
	}
	lastFamily, lastPort = models.FamilyBedrock, port

	bedrockRes, err := e.bedrock.Fetch(ctx, q.Host, port)
	if err == nil {
		logger.Debug().Str("connect", bedrockRes.Connect).Msg("Resolved Bedrock status")
		return bedrockRes
	}

	logger.Debug().Err(err).Msg("Server offline")
	return Offline(q.Host, port, models.FamilyBedrock)
}

// Offline returns the status reported when no protocol answered.
func Offline(host string, port uint16, family models.Family) *models.StatusResult {
	return &models.StatusResult{
		Name:       OfflineName,
		NameHTML:   OfflineNameHTML,
		Map:        OfflineLabel,
		Connect:    models.JoinHostPort(host, port),
		Version:    OfflineLabel,
		Favicon:    "",
		ServerType: family,
		Players:    []models.PlayerSample{},
		Online:     false,
	}
}
