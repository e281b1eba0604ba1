package status

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/game"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/motd"
)

// JavaSource builds a status from the Server List Ping, refined by the Query protocol.
type JavaSource struct {
	prober Prober
}

// NewJavaSource creates a Java source on top of prober.
func NewJavaSource(prober Prober) *JavaSource {
	return &JavaSource{prober: prober}
}

// Fetch pings host:port and, when the ping succeeds, queries host:queryPort
// (host:port when queryPort is zero). Only a failed ping makes the server unreachable.
func (s *JavaSource) Fetch(ctx context.Context, host string, port, queryPort uint16) (*models.StatusResult, error) {
	ping, err := contain(func() (*game.JavaStatus, error) {
		return s.prober.PingJava(ctx, host, port)
	})
	if err != nil {
		log.Debug().Err(err).Str("host", host).Uint16("port", port).Msg("Java ping failed")
		return nil, fmt.Errorf("java ping %s: %w", models.JoinHostPort(host, port), ErrUnreachable)
	}

	res := fromPing(host, port, ping)

	if queryPort == 0 {
		queryPort = port
	}
	stat, err := contain(func() (*game.FullStat, error) {
		return s.prober.QueryFull(ctx, host, queryPort)
	})
	if err != nil {
		log.Debug().Err(err).Str("host", host).Uint16("query_port", queryPort).Msg("Java query failed, keeping ping status")
		return res, nil
	}

	applyQuery(res, stat)
	return res, nil
}

func fromPing(host string, port uint16, ping *game.JavaStatus) *models.StatusResult {
	name, nameHTML := motd.NormalizeRaw(ping.Description)

	online := max(ping.Players.Online, 0)
	res := &models.StatusResult{
		Name:          name,
		NameHTML:      nameHTML,
		Map:           ping.Version.Name,
		Connect:       models.JoinHostPort(host, port),
		Version:       ping.Version.Name,
		Favicon:       ping.Favicon,
		ServerType:    models.FamilyJava,
		MaxPlayers:    max(ping.Players.Max, 0),
		OnlinePlayers: online,
		Online:        true,
	}

	if ping.Players.Sample == nil || len(ping.Players.Sample) != online {
		res.Players = models.Placeholders(online)
		return res
	}

	res.Players = make([]models.PlayerSample, 0, len(ping.Players.Sample))
	for _, p := range ping.Players.Sample {
		res.Players = append(res.Players, models.PlayerSample{Name: p.Name})
	}
	return res
}

// applyQuery gives the query reply precedence for the name, the player list and the world.
func applyQuery(res *models.StatusResult, stat *game.FullStat) {
	res.Name = motd.FixSectionSigns(stat.MOTD)
	res.World = stat.Map

	players := make([]models.PlayerSample, 0, len(stat.Players))
	for _, name := range stat.Players {
		players = append(players, models.PlayerSample{Name: name})
	}
	res.Players = players
}
