package game

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/game/gametest"
)

func testClient() *Client {
	return &Client{
		PingTimeout:     2 * time.Second,
		QueryTimeout:    2 * time.Second,
		BedrockTimeout:  2 * time.Second,
		ProtocolVersion: 765,
	}
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, l.Close())
	return port
}

func TestNewClient(t *testing.T) {
	c := NewClient(config.Resolve{PingTimeout: time.Second, QueryTimeout: 2 * time.Second, BedrockTimeout: 3 * time.Second, ProtocolVersion: 763})

	assert.Equal(t, time.Second, c.PingTimeout)
	assert.Equal(t, 2*time.Second, c.QueryTimeout)
	assert.Equal(t, 3*time.Second, c.BedrockTimeout)
	assert.Equal(t, int32(763), c.ProtocolVersion)
}

func TestVarInt(t *testing.T) {
	for _, v := range []int32{0, 1, 127, 128, 255, 25565, 2097151, -1} {
		var buf bytes.Buffer
		writeVarInt(&buf, v)

		got, err := readVarInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err := readVarInt(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}))
	assert.ErrorIs(t, err, ErrVarIntTooLong)
}

func TestReadPacketRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	writeVarInt(&buf, maxPacketLength+1)

	_, err := readPacket(bufio.NewReader(&buf))
	assert.ErrorIs(t, err, ErrUnexpectedPacket)
}

func TestPingJava(t *testing.T) {
	srv := gametest.NewJavaServer(t, map[string]any{
		"version": map[string]any{"name": "Paper 1.20.4", "protocol": 765},
		"players": map[string]any{
			"max":    100,
			"online": 2,
			"sample": []map[string]string{{"name": "Alex", "id": "a"}, {"name": "Steve", "id": "s"}},
		},
		"description": map[string]any{"text": "Hello"},
		"favicon":     "data:image/png;base64,AAAA",
	})

	status, err := testClient().PingJava(context.Background(), "127.0.0.1", srv.Port())
	require.NoError(t, err)

	assert.Equal(t, "Paper 1.20.4", status.Version.Name)
	assert.Equal(t, 765, status.Version.Protocol)
	assert.Equal(t, 100, status.Players.Max)
	assert.Equal(t, 2, status.Players.Online)
	require.Len(t, status.Players.Sample, 2)
	assert.Equal(t, "Steve", status.Players.Sample[1].Name)
	assert.JSONEq(t, `{"text":"Hello"}`, string(status.Description))
	assert.Equal(t, "data:image/png;base64,AAAA", status.Favicon)

	assert.Equal(t, int32(1), srv.Handshakes.Load())
	assert.Equal(t, "127.0.0.1", srv.LastHost.Load())
}

func TestPingJavaWithoutSample(t *testing.T) {
	srv := gametest.NewJavaServer(t, `{"version":{"name":"1.8","protocol":47},"players":{"max":20,"online":0},"description":"§aHi"}`)

	status, err := testClient().PingJava(context.Background(), "127.0.0.1", srv.Port())
	require.NoError(t, err)

	assert.Nil(t, status.Players.Sample)
	assert.Equal(t, `"§aHi"`, string(status.Description))
}

func TestPingJavaMalformedJSON(t *testing.T) {
	srv := gametest.NewJavaServer(t, `{"version":`)

	_, err := testClient().PingJava(context.Background(), "127.0.0.1", srv.Port())
	assert.Error(t, err)
}

func TestPingJavaUnreachable(t *testing.T) {
	_, err := testClient().PingJava(context.Background(), "127.0.0.1", closedPort(t))
	assert.Error(t, err)
}

func TestPingJavaHonorsContext(t *testing.T) {
	// accepts but never answers
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		_ = l.Close()
	})
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		<-done
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = testClient().PingJava(ctx, "127.0.0.1", uint16(l.Addr().(*net.TCPAddr).Port))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestQueryFull(t *testing.T) {
	srv := gametest.NewQueryServer(t, gametest.QueryReply{
		Challenge: -123456,
		Values: map[string]string{
			"hostname":   "\xa7bQuery MOTD",
			"gametype":   "SMP",
			"game_id":    "MINECRAFT",
			"version":    "1.20.4",
			"plugins":    "Paper on 1.20.4",
			"map":        "world",
			"numplayers": "2",
			"maxplayers": "50",
			"hostport":   "25565",
			"hostip":     "10.0.0.1",
			"motd_extra": "x",
		},
		Players: []string{"Alex", "Steve"},
	})

	stat, err := testClient().QueryFull(context.Background(), "127.0.0.1", srv.Port())
	require.NoError(t, err)

	assert.Equal(t, "\xa7bQuery MOTD", stat.MOTD)
	assert.Equal(t, "SMP", stat.GameType)
	assert.Equal(t, "MINECRAFT", stat.GameID)
	assert.Equal(t, "1.20.4", stat.Version)
	assert.Equal(t, "Paper on 1.20.4", stat.Plugins)
	assert.Equal(t, "world", stat.Map)
	assert.Equal(t, 2, stat.NumPlayers)
	assert.Equal(t, 50, stat.MaxPlayers)
	assert.Equal(t, 25565, stat.HostPort)
	assert.Equal(t, "10.0.0.1", stat.HostIP)
	assert.Equal(t, []string{"Alex", "Steve"}, stat.Players)
	assert.Equal(t, map[string]string{"motd_extra": "x"}, stat.Extra)
	assert.Equal(t, int32(1), srv.Requests.Load())
}

func TestQueryFullEmptyPlayerList(t *testing.T) {
	srv := gametest.NewQueryServer(t, gametest.QueryReply{
		Challenge: 42,
		Values:    map[string]string{"hostname": "Empty", "numplayers": "0", "maxplayers": "10"},
	})

	stat, err := testClient().QueryFull(context.Background(), "127.0.0.1", srv.Port())
	require.NoError(t, err)

	assert.Equal(t, "Empty", stat.MOTD)
	assert.NotNil(t, stat.Players)
	assert.Empty(t, stat.Players)
}

func TestQueryFullTimesOut(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	c := testClient()
	c.QueryTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err = c.QueryFull(context.Background(), "127.0.0.1", uint16(pc.LocalAddr().(*net.UDPAddr).Port))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseFullStatRejectsForeignSession(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x02}
	data = append(data, make([]byte, 20)...)

	_, err := parseFullStat(data, 1)
	assert.ErrorIs(t, err, ErrSessionMismatch)
}

func TestParseChallenge(t *testing.T) {
	token, err := parseChallenge(append([]byte{0x09, 0, 0, 0, 7}, "9513307\x00"...), 7)
	require.NoError(t, err)
	assert.Equal(t, int32(9513307), token)

	_, err = parseChallenge(append([]byte{0x09, 0, 0, 0, 7}, "abc\x00"...), 7)
	assert.Error(t, err)
}

func TestPingBedrock(t *testing.T) {
	srv := gametest.NewBedrockServer(t, "MCPE;§aBedrock MOTD;622;1.20.40;3;10;13253860892328930865;Bedrock level;Survival;1;19132;19133;")

	status, err := testClient().PingBedrock(context.Background(), "127.0.0.1", srv.Port())
	require.NoError(t, err)

	assert.Equal(t, "MCPE", status.Edition)
	assert.Equal(t, "§aBedrock MOTD", status.MOTD)
	assert.Equal(t, 622, status.ProtocolVersion)
	assert.Equal(t, "1.20.40", status.Version)
	assert.Equal(t, 3, status.OnlinePlayers)
	assert.Equal(t, 10, status.MaxPlayers)
	assert.Equal(t, "13253860892328930865", status.ServerID)
	assert.Equal(t, "Bedrock level", status.LevelName)
	assert.Equal(t, "Survival", status.GameMode)
}

func TestPingBedrockResendsLostPings(t *testing.T) {
	srv := gametest.NewBedrockServer(t, "MCPE;Lossy;622;1.20.40;0;10")
	srv.DropFirst(2)

	status, err := testClient().PingBedrock(context.Background(), "127.0.0.1", srv.Port())
	require.NoError(t, err)
	assert.Equal(t, "Lossy", status.MOTD)
	assert.Empty(t, status.LevelName)
}

func TestPingBedrockTimesOut(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	c := testClient()
	c.BedrockTimeout = 300 * time.Millisecond

	start := time.Now()
	_, err = c.PingBedrock(context.Background(), "127.0.0.1", uint16(pc.LocalAddr().(*net.UDPAddr).Port))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestParsePongErrors(t *testing.T) {
	_, err := parsePong([]byte{0x1C, 0x00})
	assert.ErrorIs(t, err, ErrUnexpectedPacket)

	pong := make([]byte, pongHeader+2)
	pong[0] = 0x1D
	_, err = parsePong(pong)
	assert.ErrorIs(t, err, ErrUnexpectedPacket)

	pong[0] = unconnectedPong
	pong[pongHeader+1] = 50
	_, err = parsePong(pong)
	assert.ErrorIs(t, err, ErrUnexpectedPacket)
}

func TestParseAdvertiseShort(t *testing.T) {
	status := parseAdvertise("MCPE;Only motd")

	assert.Equal(t, "Only motd", status.MOTD)
	assert.Zero(t, status.MaxPlayers)
	assert.Empty(t, status.Version)
}
