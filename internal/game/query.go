package game

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"
)

const (
	queryMagic     uint16 = 0xFEFD
	queryHandshake byte   = 0x09
	queryStat      byte   = 0x00

	// sessionMask keeps only the low nibble of every byte, as servers require.
	sessionMask uint32 = 0x0F0F0F0F

	// statPadding precedes the key/value section, playersPadding the player list.
	statPadding    = 11
	playersPadding = 10

	maxDatagram = 64 * 1024
)

// ErrSessionMismatch is returned when a query reply carries a foreign session id.
var ErrSessionMismatch = errors.New("query session mismatch")

// FullStat is the full statistics reply of the Query protocol.
// Strings keep the raw server bytes; formatting markers are not decoded.
type FullStat struct {
	Extra      map[string]string
	MOTD       string
	GameType   string
	GameID     string
	Version    string
	Plugins    string
	Map        string
	HostIP     string
	Players    []string
	NumPlayers int
	MaxPlayers int
	HostPort   int
}

// QueryFull requests full statistics over UDP from host:port.
func (c *Client) QueryFull(ctx context.Context, host string, port uint16) (*FullStat, error) {
	ctx, cancel := withTimeout(ctx, c.QueryTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, release, err := dial(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() {
		release()
		_ = conn.Close()
	}()

	session := rand.Uint32() & sessionMask
	buf := make([]byte, maxDatagram)

	if _, err := conn.Write(queryRequest(queryHandshake, session, nil)); err != nil {
		return nil, fmt.Errorf("query handshake: %w", err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("query handshake reply: %w", err)
	}
	token, err := parseChallenge(buf[:n], session)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload, uint32(token))
	if _, err := conn.Write(queryRequest(queryStat, session, payload)); err != nil {
		return nil, fmt.Errorf("query stat: %w", err)
	}
	n, err = conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("query stat reply: %w", err)
	}

	return parseFullStat(buf[:n], session)
}

func queryRequest(kind byte, session uint32, payload []byte) []byte {
	req := make([]byte, 7, 7+len(payload))
	binary.BigEndian.PutUint16(req[0:2], queryMagic)
	req[2] = kind
	binary.BigEndian.PutUint32(req[3:7], session)
	return append(req, payload...)
}

// checkHeader validates the reply type and session and returns the body.
func checkHeader(data []byte, kind byte, session uint32) ([]byte, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("query reply of %d bytes: %w", len(data), ErrUnexpectedPacket)
	}
	if data[0] != kind {
		return nil, fmt.Errorf("query reply type 0x%02x: %w", data[0], ErrUnexpectedPacket)
	}
	if binary.BigEndian.Uint32(data[1:5]) != session {
		return nil, ErrSessionMismatch
	}
	return data[5:], nil
}

// parseChallenge reads the decimal challenge token from a handshake reply.
func parseChallenge(data []byte, session uint32) (int32, error) {
	body, err := checkHeader(data, queryHandshake, session)
	if err != nil {
		return 0, err
	}

	raw := strings.TrimRight(string(body), "\x00")
	token, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("query challenge %q: %w", raw, err)
	}
	return int32(token), nil
}

func parseFullStat(data []byte, session uint32) (*FullStat, error) {
	body, err := checkHeader(data, queryStat, session)
	if err != nil {
		return nil, err
	}
	if len(body) < statPadding {
		return nil, fmt.Errorf("query stat too short: %w", ErrUnexpectedPacket)
	}

	r := bufio.NewReader(bytes.NewReader(body[statPadding:]))
	values := make(map[string]string)
	for {
		key, err := readCString(r)
		if err != nil {
			return nil, fmt.Errorf("query stat key: %w", err)
		}
		if key == "" {
			break
		}
		value, err := readCString(r)
		if err != nil {
			return nil, fmt.Errorf("query stat value %s: %w", key, err)
		}
		values[key] = value
	}

	if _, err := r.Discard(playersPadding); err != nil {
		return nil, fmt.Errorf("query player section: %w", err)
	}

	players := []string{}
	for {
		name, err := readCString(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("query player: %w", err)
		}
		if name == "" {
			break
		}
		players = append(players, name)
	}

	stat := &FullStat{
		MOTD:       values["hostname"],
		GameType:   values["gametype"],
		GameID:     values["game_id"],
		Version:    values["version"],
		Plugins:    values["plugins"],
		Map:        values["map"],
		HostIP:     values["hostip"],
		NumPlayers: atoi(values["numplayers"]),
		MaxPlayers: atoi(values["maxplayers"]),
		HostPort:   atoi(values["hostport"]),
		Players:    players,
		Extra:      make(map[string]string),
	}
	for k, v := range values {
		switch k {
		case "hostname", "gametype", "game_id", "version", "plugins", "map", "hostip", "numplayers", "maxplayers", "hostport":
		default:
			stat.Extra[k] = v
		}
	}

	return stat, nil
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0x00)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
