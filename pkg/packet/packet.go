// Package packet defines the session handshake packets and their binary codec.
//
// Layout: one type byte followed by the packet's fields. Integers are uvarints,
// strings are uvarint length prefixed.
package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ProtocolVersion is the handshake version spoken by this build.
const ProtocolVersion uint32 = 1

// MaxStringLen bounds decoded strings.
const MaxStringLen = 4096

type Type uint8

const (
	TypeConnect Type = iota + 1
	TypeAccept
)

func (t Type) String() string {
	switch t {
	case TypeConnect:
		return "Connect"
	case TypeAccept:
		return "Accept"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

var (
	ErrUnknownType   = errors.New("unknown packet type")
	ErrShortPacket   = errors.New("packet is truncated")
	ErrStringTooLong = errors.New("packet string exceeds limit")
	ErrValueOverflow = errors.New("packet value out of range")
)

type Packet interface {
	Type() Type
}

// Connect is sent by a joining client once its connection to the host is up.
type Connect struct {
	ProtocolVersion uint32
	TemporaryUserID uint64
	Ticket          string
}

func (Connect) Type() Type { return TypeConnect }

// Accept is the host's reply to Connect.
type Accept struct {
	HostID uint64
	Map    string
}

func (Accept) Type() Type { return TypeAccept }

// ==================================================================
// Codec
// ==================================================================

func Encode(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(p.Type()))

	switch v := p.(type) {
	case Connect:
		writeUvarint(&buf, uint64(v.ProtocolVersion))
		writeUvarint(&buf, v.TemporaryUserID)
		writeString(&buf, v.Ticket)
	case *Connect:
		return Encode(*v)
	case Accept:
		writeUvarint(&buf, v.HostID)
		writeString(&buf, v.Map)
	case *Accept:
		return Encode(*v)
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownType, p.Type())
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, ErrShortPacket
	}

	r := bytes.NewReader(data[1:])

	switch Type(data[0]) {
	case TypeConnect:
		var p Connect
		version, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		if version > math.MaxUint32 {
			return nil, fmt.Errorf("%w: protocol version %d", ErrValueOverflow, version)
		}
		p.ProtocolVersion = uint32(version)
		if p.TemporaryUserID, err = readUvarint(r); err != nil {
			return nil, err
		}
		if p.Ticket, err = readString(r); err != nil {
			return nil, err
		}
		return p, nil

	case TypeAccept:
		var p Accept
		var err error
		if p.HostID, err = readUvarint(r); err != nil {
			return nil, err
		}
		if p.Map, err = readString(r); err != nil {
			return nil, err
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w %s", ErrUnknownType, Type(data[0]))
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrShortPacket, err)
	}
	return v, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", fmt.Errorf("%w: %d", ErrStringTooLong, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrShortPacket, err)
	}
	return string(b), nil
}
