// Package fake provides utilities for generating random tracked-server data for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/models"
)

// Store persists tracked servers. *storage.Repository implements it.
type Store interface {
	UpsertServer(s models.Server) error
}

// GenerateData populates the storage with a specified number of randomized server records.
// It simulates various editions, versions, countries, and player counts.
func GenerateData(store Store, count int) {
	javaVersions := []string{"1.8.9", "1.12.2", "1.16.5", "Paper 1.20.4", "Purpur 1.21.1", "Velocity 3.3.0"}
	bedrockVersions := []string{"1.20.40", "1.20.80", "1.21.2"}
	worlds := []string{"world", "world_nether", "lobby", "skyblock", "Bedrock level"}
	names := []string{"Survival", "Skyblock", "Factions", "Creative", "Minigames", "Anarchy"}
	tlds := []string{"com", "net", "org", "gg", "io"}

	// Countries list
	countriesHigh := []string{"US", "DE", "RU", "BR", "FR", "GB", "PL", "CZ", "UA"}
	countriesMid := []string{"CA", "AU", "IT", "ES", "NL", "SE", "JP", "KR", "TR"}
	countriesLow := []string{"ZA", "AR", "MX", "IN", "ID", "VN", "CH", "NO", "FI"}

	for i := 0; i < count; i++ {
		// Random date-time in 30 days range
		daysAgo := rand.Intn(30)
		seenTime := time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour).
			Add(-time.Duration(rand.Intn(1440)) * time.Minute)

		// Select country
		var country string
		roll := rand.Float32()
		switch {
		case roll < 0.70:
			country = countriesHigh[rand.Intn(len(countriesHigh))]
		case roll < 0.90:
			country = countriesMid[rand.Intn(len(countriesMid))]
		default:
			country = countriesLow[rand.Intn(len(countriesLow))]
		}

		srv := models.Server{
			Host:        fmt.Sprintf("mc%d.example.%s", rand.Intn(100000), tlds[rand.Intn(len(tlds))]),
			Type:        models.FamilyJava,
			IP:          fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255)),
			CountryCode: country,
			Name:        fmt.Sprintf("§6%s §7#%d", names[rand.Intn(len(names))], rand.Intn(1000)),
			World:       worlds[rand.Intn(len(worlds))],
			Version:     javaVersions[rand.Intn(len(javaVersions))],
			MaxPlayers:  []int{20, 50, 100, 500}[rand.Intn(4)],
			Online:      rand.Float32() < 0.8,
			FirstSeen:   seenTime.Add(-time.Hour * 24 * 7),
			LastSeen:    seenTime,
		}

		// 25% Bedrock servers
		if rand.Float32() < 0.25 {
			srv.Type = models.FamilyBedrock
			srv.Port = int(models.DefaultBedrockPort)
			srv.Version = bedrockVersions[rand.Intn(len(bedrockVersions))]
		}

		if srv.Online {
			srv.Players = rand.Intn(srv.MaxPlayers + 1)
			srv.LastOnline = seenTime
		}

		err := store.UpsertServer(srv)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
		}

		if rand.Float32() < 0.3 { // 30% chance seen again
			_ = store.UpsertServer(srv)
			_ = store.UpsertServer(srv)
		}
	}
}
