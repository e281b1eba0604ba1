package game

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// maxPacketLength bounds a single Java packet; statuses with icons stay well below it.
const maxPacketLength = 1 << 21

var (
	// ErrVarIntTooLong is returned for VarInts longer than five bytes.
	ErrVarIntTooLong = errors.New("varint too long")

	// ErrUnexpectedPacket is returned when a reply does not match the request.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

func writeVarInt(buf *bytes.Buffer, value int32) {
	v := uint32(value)
	for {
		if v&^0x7F == 0 {
			buf.WriteByte(byte(v))
			return
		}
		buf.WriteByte(byte(v&0x7F | 0x80))
		v >>= 7
	}
}

func readVarInt(r io.ByteReader) (int32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, ErrVarIntTooLong
}

func writeString(buf *bytes.Buffer, s string) {
	writeVarInt(buf, int32(len(s)))
	buf.WriteString(s)
}

// writePacket writes payload prefixed with its VarInt length.
func writePacket(w io.Writer, payload []byte) error {
	var buf bytes.Buffer
	writeVarInt(&buf, int32(len(payload)))
	buf.Write(payload)
	_, err := w.Write(buf.Bytes())
	return err
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// readPacket reads one length-prefixed packet.
func readPacket(r byteReader) ([]byte, error) {
	length, err := readVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read packet length: %w", err)
	}
	if length < 0 || length > maxPacketLength {
		return nil, fmt.Errorf("invalid packet length %d: %w", length, ErrUnexpectedPacket)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read packet payload: %w", err)
	}
	return payload, nil
}

func readString(r byteReader) (string, error) {
	length, err := readVarInt(r)
	if err != nil {
		return "", err
	}
	if length < 0 || length > maxPacketLength {
		return "", fmt.Errorf("invalid string length %d: %w", length, ErrUnexpectedPacket)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
