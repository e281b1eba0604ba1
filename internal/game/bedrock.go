package game

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	unconnectedPing byte = 0x01
	unconnectedPong byte = 0x1C

	// pongHeader is id, time, server guid and magic before the advertise length.
	pongHeader = 1 + 8 + 8 + 16

	// resendInterval is how long to wait for a pong before sending the ping again.
	resendInterval = 500 * time.Millisecond
)

var raknetMagic = mustHex("00ffff00fefefefefdfdfdfd12345678")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// BedrockStatus is the decoded advertise string of an unconnected pong.
type BedrockStatus struct {
	Edition         string
	MOTD            string
	Version         string
	ServerID        string
	LevelName       string
	GameMode        string
	ProtocolVersion int
	OnlinePlayers   int
	MaxPlayers      int
}

// PingBedrock sends a RakNet unconnected ping to host:port. The ping is resent
// until a pong arrives or the context expires.
func (c *Client) PingBedrock(ctx context.Context, host string, port uint16) (*BedrockStatus, error) {
	ctx, cancel := withTimeout(ctx, c.BedrockTimeout)
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

	ping := unconnectedPingPacket(time.Now(), rand.Int64())
	buf := make([]byte, 2048)

	for {
		if _, err := conn.Write(ping); err != nil {
			return nil, fmt.Errorf("bedrock ping: %w", err)
		}

		deadline := time.Now().Add(resendInterval)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		_ = conn.SetReadDeadline(deadline)

		n, err := conn.Read(buf)
		if err == nil {
			return parsePong(buf[:n])
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("bedrock pong from %s: %w", addr, ctx.Err())
		}
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return nil, fmt.Errorf("bedrock pong from %s: %w", addr, err)
		}
	}
}

func unconnectedPingPacket(now time.Time, guid int64) []byte {
	buf := make([]byte, 1+8+len(raknetMagic)+8)
	buf[0] = unconnectedPing
	binary.BigEndian.PutUint64(buf[1:9], uint64(now.UnixMilli()))
	copy(buf[9:25], raknetMagic)
	binary.BigEndian.PutUint64(buf[25:33], uint64(guid))
	return buf
}

func parsePong(buf []byte) (*BedrockStatus, error) {
	if len(buf) < pongHeader+2 {
		return nil, fmt.Errorf("bedrock pong of %d bytes: %w", len(buf), ErrUnexpectedPacket)
	}
	if buf[0] != unconnectedPong {
		return nil, fmt.Errorf("bedrock packet id 0x%02x: %w", buf[0], ErrUnexpectedPacket)
	}

	length := int(binary.BigEndian.Uint16(buf[pongHeader : pongHeader+2]))
	if pongHeader+2+length > len(buf) {
		return nil, fmt.Errorf("bedrock advertise length %d: %w", length, ErrUnexpectedPacket)
	}

	return parseAdvertise(string(buf[pongHeader+2 : pongHeader+2+length])), nil
}

// parseAdvertise splits "MCPE;motd;protocol;version;online;max;id;level;mode;..." fields.
// Missing fields stay empty or zero.
func parseAdvertise(advertise string) *BedrockStatus {
	parts := strings.Split(advertise, ";")
	get := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	return &BedrockStatus{
		Edition:         get(0),
		MOTD:            get(1),
		ProtocolVersion: atoi(get(2)),
		Version:         get(3),
		OnlinePlayers:   atoi(get(4)),
		MaxPlayers:      atoi(get(5)),
		ServerID:        get(6),
		LevelName:       get(7),
		GameMode:        get(8),
	}
}
