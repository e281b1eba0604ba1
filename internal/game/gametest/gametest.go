// Package gametest provides in-process Minecraft servers for tests.
package gametest

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
)

// JavaServer answers Server List Ping requests with a fixed status document.
type JavaServer struct {
	listener net.Listener
	// Handshakes counts completed handshakes.
	Handshakes atomic.Int32
	// LastHost is the host announced in the latest handshake.
	LastHost atomic.Value
	status   []byte
}

// NewJavaServer starts a TCP server on 127.0.0.1 replying with status. A string
// status is sent verbatim, anything else is marshaled to JSON.
func NewJavaServer(tb testing.TB, status any) *JavaServer {
	tb.Helper()

	doc, ok := status.(string)
	if !ok {
		raw, err := json.Marshal(status)
		if err != nil {
			tb.Fatalf("marshal status: %v", err)
		}
		doc = string(raw)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}

	s := &JavaServer{listener: l, status: []byte(doc)}
	tb.Cleanup(func() { _ = l.Close() })
	go s.serve()

	return s
}

// Port returns the listening port.
func (s *JavaServer) Port() uint16 {
	return uint16(s.listener.Addr().(*net.TCPAddr).Port)
}

func (s *JavaServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *JavaServer) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	r := bufio.NewReader(conn)

	handshake, err := readPacket(r)
	if err != nil {
		return
	}
	hr := bytes.NewReader(handshake)
	// packet id and protocol version
	_, _ = binary.ReadUvarint(hr)
	_, _ = binary.ReadUvarint(hr)
	hostLen, _ := binary.ReadUvarint(hr)
	host := make([]byte, hostLen)
	_, _ = io.ReadFull(hr, host)
	s.LastHost.Store(string(host))
	s.Handshakes.Add(1)

	if _, err := readPacket(r); err != nil {
		return
	}

	var payload bytes.Buffer
	payload.WriteByte(0x00)
	payload.Write(binary.AppendUvarint(nil, uint64(len(s.status))))
	payload.Write(s.status)

	frame := binary.AppendUvarint(nil, uint64(payload.Len()))
	_, _ = conn.Write(append(frame, payload.Bytes()...))
}

func readPacket(r *bufio.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	_, err = io.ReadFull(r, buf)
	return buf, err
}

// QueryReply is the content served by a QueryServer.
type QueryReply struct {
	Values  map[string]string
	Players []string
	// Challenge is the token handed out on handshake.
	Challenge int32
}

// QueryServer answers Query protocol handshakes and full stat requests.
type QueryServer struct {
	conn  net.PacketConn
	reply QueryReply
	// Requests counts full stat requests that carried the issued challenge.
	Requests atomic.Int32
}

// NewQueryServer starts a UDP query server on 127.0.0.1.
func NewQueryServer(tb testing.TB, reply QueryReply) *QueryServer {
	tb.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}

	s := &QueryServer{conn: conn, reply: reply}
	tb.Cleanup(func() { _ = conn.Close() })
	go s.serve()

	return s
}

// Port returns the listening port.
func (s *QueryServer) Port() uint16 {
	return uint16(s.conn.LocalAddr().(*net.UDPAddr).Port)
}

func (s *QueryServer) serve() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if n < 7 || buf[0] != 0xFE || buf[1] != 0xFD {
			continue
		}
		session := append([]byte(nil), buf[3:7]...)

		switch buf[2] {
		case 0x09:
			resp := append([]byte{0x09}, session...)
			resp = append(resp, strconv.Itoa(int(s.reply.Challenge))...)
			resp = append(resp, 0x00)
			_, _ = s.conn.WriteTo(resp, addr)
		case 0x00:
			if n < 11 || int32(binary.BigEndian.Uint32(buf[7:11])) != s.reply.Challenge {
				continue
			}
			s.Requests.Add(1)
			_, _ = s.conn.WriteTo(s.fullStat(session), addr)
		}
	}
}

func (s *QueryServer) fullStat(session []byte) []byte {
	var b bytes.Buffer
	b.WriteByte(0x00)
	b.Write(session)
	b.WriteString("splitnum\x00\x80\x00")
	for k, v := range s.reply.Values {
		b.WriteString(k)
		b.WriteByte(0x00)
		b.WriteString(v)
		b.WriteByte(0x00)
	}
	b.WriteByte(0x00)
	b.WriteString("\x01player_\x00\x00")
	for _, p := range s.reply.Players {
		b.WriteString(p)
		b.WriteByte(0x00)
	}
	b.WriteByte(0x00)

	return b.Bytes()
}

// BedrockServer answers RakNet unconnected pings with a fixed advertise string.
type BedrockServer struct {
	conn      net.PacketConn
	advertise string
	drop      atomic.Int32
}

// NewBedrockServer starts a UDP Bedrock server on 127.0.0.1.
func NewBedrockServer(tb testing.TB, advertise string) *BedrockServer {
	tb.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}

	s := &BedrockServer{conn: conn, advertise: advertise}
	tb.Cleanup(func() { _ = conn.Close() })
	go s.serve()

	return s
}

// DropFirst makes the server ignore the next n pings.
func (s *BedrockServer) DropFirst(n int32) {
	s.drop.Store(n)
}

// Port returns the listening port.
func (s *BedrockServer) Port() uint16 {
	return uint16(s.conn.LocalAddr().(*net.UDPAddr).Port)
}

func (s *BedrockServer) serve() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if n < 33 || buf[0] != 0x01 {
			continue
		}
		if s.drop.Load() > 0 {
			s.drop.Add(-1)
			continue
		}

		resp := make([]byte, 0, 35+len(s.advertise))
		resp = append(resp, 0x1C)
		// echo time, server guid, magic
		resp = append(resp, buf[1:9]...)
		resp = binary.BigEndian.AppendUint64(resp, 0xC0FFEE)
		resp = append(resp, buf[9:25]...)
		resp = binary.BigEndian.AppendUint16(resp, uint16(len(s.advertise)))
		resp = append(resp, s.advertise...)
		_, _ = s.conn.WriteTo(resp, addr)
	}
}
