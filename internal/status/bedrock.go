package status

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/game"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/motd"
)

// BedrockSource builds a status from the Bedrock unconnected ping.
type BedrockSource struct {
	prober Prober
}

// NewBedrockSource creates a Bedrock source on top of prober.
func NewBedrockSource(prober Prober) *BedrockSource {
	return &BedrockSource{prober: prober}
}

// Fetch pings host:port, port 19132 when zero.
func (s *BedrockSource) Fetch(ctx context.Context, host string, port uint16) (*models.StatusResult, error) {
	if port == 0 {
		port = models.DefaultBedrockPort
	}

	pong, err := contain(func() (*game.BedrockStatus, error) {
		return s.prober.PingBedrock(ctx, host, port)
	})
	if err != nil {
		log.Debug().Err(err).Str("host", host).Uint16("port", port).Msg("Bedrock ping failed")
		return nil, fmt.Errorf("bedrock ping %s: %w", models.JoinHostPort(host, port), ErrUnreachable)
	}

	name, nameHTML := motd.NormalizeString(pong.MOTD)
	online := max(pong.OnlinePlayers, 0)

	return &models.StatusResult{
		Name:          name,
		NameHTML:      nameHTML,
		Map:           pong.LevelName,
		World:         pong.LevelName,
		Connect:       models.JoinHostPort(host, port),
		Version:       pong.Version,
		Favicon:       "",
		ServerType:    models.FamilyBedrock,
		Players:       models.Placeholders(online),
		MaxPlayers:    max(pong.MaxPlayers, 0),
		OnlinePlayers: online,
		Online:        true,
	}, nil
}
