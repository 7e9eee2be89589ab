package packet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLen bounds a single framed packet on stream transports.
const MaxFrameLen = 64 * 1024

// WriteFrame writes data prefixed with its uvarint length.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameLen {
		return fmt.Errorf("frame of %d bytes exceeds %d", len(data), MaxFrameLen)
	}

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(data)))

	if _, err := w.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadFrame reads one length prefixed frame.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameLen {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d", n, MaxFrameLen)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
