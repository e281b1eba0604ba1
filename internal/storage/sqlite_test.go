package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcstatus/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func onlineServer(now time.Time) models.Server {
	return models.Server{
		Host:        "mc.example.com",
		Port:        25565,
		Type:        models.FamilyJava,
		IP:          "10.0.0.1",
		CountryCode: "DE",
		Name:        "Example",
		World:       "world",
		Version:     "Paper 1.20.4",
		Players:     3,
		MaxPlayers:  20,
		Online:      true,
		FirstSeen:   now,
		LastSeen:    now,
		LastOnline:  now,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())
}

func TestUpsertAndGetServer(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.UpsertServer(onlineServer(now)))

	got, err := repo.GetServer("mc.example.com", 25565)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Example", got.Name)
	assert.Equal(t, models.FamilyJava, got.Type)
	assert.Equal(t, "DE", got.CountryCode)
	assert.Equal(t, 3, got.Players)
	assert.True(t, got.Online)
	assert.Equal(t, int64(1), got.Count)
	assert.True(t, got.LastOnline.Equal(now))

	missing, err := repo.GetServer("mc.example.com", 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertOfflineKeepsLastKnownStatus(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.UpsertServer(onlineServer(now)))

	later := now.Add(time.Hour)
	require.NoError(t, repo.UpsertServer(models.Server{
		Host:      "mc.example.com",
		Port:      25565,
		Type:      models.FamilyBedrock,
		Name:      "Server Offline",
		FirstSeen: later,
		LastSeen:  later,
	}))

	got, err := repo.GetServer("mc.example.com", 25565)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.False(t, got.Online)
	assert.Equal(t, "Example", got.Name)
	assert.Equal(t, models.FamilyJava, got.Type)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.Zero(t, got.Players)
	assert.Equal(t, int64(2), got.Count)
	assert.True(t, got.LastSeen.Equal(later))
	assert.True(t, got.LastOnline.Equal(now))
	assert.True(t, got.FirstSeen.Equal(now))
}

func TestGetServersAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	first := onlineServer(now)
	second := onlineServer(now.Add(time.Minute))
	second.Host = "play.example.net"
	second.LastSeen = now.Add(time.Minute)

	require.NoError(t, repo.UpsertServer(first))
	require.NoError(t, repo.UpsertServer(second))

	servers, err := repo.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "play.example.net", servers[0].Host)

	require.NoError(t, repo.DeleteServer("play.example.net", 25565))

	servers, err = repo.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "mc.example.com", servers[0].Host)
}

func TestPruneOffline(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	stale := onlineServer(now.Add(-48 * time.Hour))
	stale.Host = "stale.example.com"

	neverOnline := models.Server{
		Host:      "ghost.example.com",
		Port:      25565,
		Type:      models.FamilyJava,
		FirstSeen: now.Add(-72 * time.Hour),
		LastSeen:  now,
	}

	require.NoError(t, repo.UpsertServer(onlineServer(now)))
	require.NoError(t, repo.UpsertServer(stale))
	require.NoError(t, repo.UpsertServer(neverOnline))

	removed, err := repo.PruneOffline(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	servers, err := repo.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "mc.example.com", servers[0].Host)
}
