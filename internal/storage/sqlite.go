// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/mcstatus/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

const serverColumns = `host, port, type, ip, country_code, name, world, version,
		       players, max_players, online, count, first_seen, last_seen, last_online`

// UpsertServer inserts a new server or updates an existing one identified by host and port.
// Status fields are overwritten only by online observations, so an offline probe keeps
// the last known name, world and version.
func (r *Repository) UpsertServer(s models.Server) error {
	query := `
	INSERT INTO servers (
		host, port, type, ip, country_code, name, world, version,
		players, max_players, online, count, first_seen, last_seen, last_online
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	ON CONFLICT(host, port) DO UPDATE SET
		count = count + 1,
		last_seen = excluded.last_seen,
		online = excluded.online,

		-- Keep the previous address data when the new lookup failed
		ip           = CASE WHEN excluded.ip != '' THEN excluded.ip ELSE servers.ip END,
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END,

		-- Status fields only from online observations
		type        = CASE WHEN excluded.online THEN excluded.type ELSE servers.type END,
		name        = CASE WHEN excluded.online THEN excluded.name ELSE servers.name END,
		world       = CASE WHEN excluded.online THEN excluded.world ELSE servers.world END,
		version     = CASE WHEN excluded.online THEN excluded.version ELSE servers.version END,
		players     = CASE WHEN excluded.online THEN excluded.players ELSE 0 END,
		max_players = CASE WHEN excluded.online THEN excluded.max_players ELSE servers.max_players END,
		last_online = CASE WHEN excluded.online THEN excluded.last_online ELSE servers.last_online END;
	`

	// Use LastSeen for FirstSeen when inserting a new record
	_, err := r.db.Exec(query,
		s.Host, s.Port, s.Type, s.IP, s.CountryCode, s.Name, s.World, s.Version,
		s.Players, s.MaxPlayers, s.Online, s.FirstSeen.UTC(), s.LastSeen.UTC(), nullTime(s.LastOnline),
	)

	return err
}

// GetServers retrieves all servers, sorted by the last seen timestamp in descending order.
func (r *Repository) GetServers() ([]models.Server, error) {
	return r.queryServers(`SELECT ` + serverColumns + ` FROM servers ORDER BY last_seen DESC`)
}

// GetServer retrieves a server by host and port. It returns nil when not found.
func (r *Repository) GetServer(host string, port int) (*models.Server, error) {
	row := r.db.QueryRow(`SELECT `+serverColumns+` FROM servers WHERE host = ? AND port = ?`, host, port)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// DeleteServer removes a server identified by host and port.
func (r *Repository) DeleteServer(host string, port int) error {
	_, err := r.db.Exec(`DELETE FROM servers WHERE host = ? AND port = ?`, host, port)
	return err
}

// PruneOffline removes servers that have not been online since before.
// Servers never seen online are pruned by their first sighting.
func (r *Repository) PruneOffline(before time.Time) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM servers
		WHERE COALESCE(last_online, first_seen) < ?
	`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) queryServers(query string, args ...any) ([]models.Server, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			continue
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (models.Server, error) {
	var (
		s          models.Server
		lastOnline sql.NullTime
	)
	err := row.Scan(
		&s.Host, &s.Port, &s.Type, &s.IP, &s.CountryCode, &s.Name, &s.World, &s.Version,
		&s.Players, &s.MaxPlayers, &s.Online, &s.Count, &s.FirstSeen, &s.LastSeen, &lastOnline,
	)
	if lastOnline.Valid {
		s.LastOnline = lastOnline.Time
	}
	return s, err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
