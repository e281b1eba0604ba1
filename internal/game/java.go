package game

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// JavaStatus is the JSON document returned by the Server List Ping.
type JavaStatus struct {
	Version     JavaVersion     `json:"version"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon,omitempty"`
	Players     JavaPlayers     `json:"players"`
}

// JavaVersion is the version block of a status document.
type JavaVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// JavaPlayers is the players block of a status document.
// Sample is nil when the server omits it.
type JavaPlayers struct {
	Sample []PlayerEntry `json:"sample,omitempty"`
	Max    int           `json:"max"`
	Online int           `json:"online"`
}

// PlayerEntry is one entry of the player sample.
type PlayerEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// PingJava performs a Server List Ping handshake against host:port.
func (c *Client) PingJava(ctx context.Context, host string, port uint16) (*JavaStatus, error) {
	ctx, cancel := withTimeout(ctx, c.PingTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, release, err := dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() {
		release()
		_ = conn.Close()
	}()

	if err := writePacket(conn, handshakePacket(c.ProtocolVersion, host, port)); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if err := writePacket(conn, []byte{0x00}); err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}

	payload, err := readPacket(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("status response: %w", err)
	}

	return parseStatusPacket(payload)
}

// handshakePacket builds the handshake with next state "status".
func handshakePacket(protocol int32, host string, port uint16) []byte {
	var buf bytes.Buffer
	writeVarInt(&buf, 0x00)
	writeVarInt(&buf, protocol)
	writeString(&buf, host)
	_ = binary.Write(&buf, binary.BigEndian, port)
	writeVarInt(&buf, 0x01)

	return buf.Bytes()
}

func parseStatusPacket(payload []byte) (*JavaStatus, error) {
	r := bytes.NewReader(payload)
	id, err := readVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("status packet id: %w", err)
	}
	if id != 0x00 {
		return nil, fmt.Errorf("status packet id %d: %w", id, ErrUnexpectedPacket)
	}

	doc, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("status json: %w", err)
	}

	return parseJavaStatus([]byte(doc))
}

func parseJavaStatus(data []byte) (*JavaStatus, error) {
	var status JavaStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status json: %w", err)
	}
	return &status, nil
}
