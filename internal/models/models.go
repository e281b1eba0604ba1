// Package models defines the data structures used for status requests, responses and database persistence.
package models

import (
	"strconv"
	"time"
)

// Family is the protocol family a Minecraft server speaks.
type Family string

const (
	// FamilyJava is the Java edition (Server List Ping and Query protocols).
	FamilyJava Family = "java"

	// FamilyBedrock is the Bedrock edition (RakNet unconnected ping).
	FamilyBedrock Family = "bedrock"
)

// Default connect ports per family.
const (
	DefaultJavaPort    uint16 = 25565
	DefaultBedrockPort uint16 = 19132
)

// DefaultPort returns the well-known port of the family.
func (f Family) DefaultPort() uint16 {
	if f == FamilyBedrock {
		return DefaultBedrockPort
	}
	return DefaultJavaPort
}

// ServerQuery is a status request. Zero ports mean "not set".
type ServerQuery struct {
	Host      string `json:"host"`
	Family    Family `json:"family"`
	Port      uint16 `json:"port,omitempty"`
	QueryPort uint16 `json:"query_port,omitempty"`
}

// FamilyOrDefault returns the requested family, java when unset.
func (q ServerQuery) FamilyOrDefault() Family {
	if q.Family == FamilyBedrock {
		return FamilyBedrock
	}
	return FamilyJava
}

// PlayerSample is a single player entry. Name is empty for placeholders.
type PlayerSample struct {
	Name string `json:"name"`
}

// StatusResult is the normalized status of a server.
type StatusResult struct {
	// Name is the plain-text MOTD.
	Name string `json:"name"`

	// NameHTML is the markup rendering of the MOTD.
	NameHTML string `json:"nameHTML"`

	// Map is the world name for Bedrock servers and the version label for Java servers.
	// Kept for compatibility with existing consumers, see World for the unambiguous value.
	Map string `json:"map"`

	// World is the world/map name reported by the query protocol or the Bedrock level name.
	World string `json:"world"`

	// Connect is the "host:port" actually contacted.
	Connect string `json:"connect"`

	Version    string `json:"version"`
	Favicon    string `json:"favicon"`
	ServerType Family `json:"server_type"`

	Players       []PlayerSample `json:"players"`
	MaxPlayers    int            `json:"maxplayers"`
	OnlinePlayers int            `json:"onlineplayers"`

	Online bool `json:"online"`
}

// Placeholders returns n empty-name player entries, never nil.
func Placeholders(n int) []PlayerSample {
	if n < 0 {
		n = 0
	}
	return make([]PlayerSample, n)
}

// JoinHostPort formats the connect address of a host and port.
func JoinHostPort(host string, port uint16) string {
	return host + ":" + strconv.FormatUint(uint64(port), 10)
}

// Server represents a tracked Minecraft server stored in the database.
type Server struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastOnline  time.Time `json:"last_online"`
	Host        string    `json:"host"`
	Type        Family    `json:"type"`
	IP          string    `json:"ip"`
	CountryCode string    `json:"country_code"`
	Name        string    `json:"name"`
	World       string    `json:"world"`
	Version     string    `json:"version"`
	Port        int       `json:"port"`
	Count       int64     `json:"count"`
	Players     int       `json:"players"`
	MaxPlayers  int       `json:"max_players"`
	Online      bool      `json:"online"`
}

// ServerFromStatus builds a tracked server row from a resolution result.
func ServerFromStatus(host string, port int, res *StatusResult, now time.Time) Server {
	srv := Server{
		Host:       host,
		Port:       port,
		Type:       res.ServerType,
		Name:       res.Name,
		World:      res.World,
		Version:    res.Version,
		Players:    res.OnlinePlayers,
		MaxPlayers: res.MaxPlayers,
		Online:     res.Online,
		FirstSeen:  now,
		LastSeen:   now,
	}
	if res.Online {
		srv.LastOnline = now
	}
	return srv
}
