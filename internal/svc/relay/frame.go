// If you are AI: This file defines the wire framing relay connections use
// to carry channel frames between videopipe processes: a 2-byte
// big-endian type-string length, the type string, then a 4-byte
// big-endian payload length and the payload. It mirrors wspreview's
// binary framing (internal/svc/wspreview/handler.go) since both exist to
// carry the same channel.Message shape over a byte stream.

package relay

import (
	"encoding/binary"
	"fmt"
	"io"
)

const maxPayloadSize = 64 << 20 // 64 MiB, generous upper bound for one frame

func writeFrame(w io.Writer, typeStr string, payload []byte) error {
	if len(typeStr) > 0xffff {
		return fmt.Errorf("relay: type string too long (%d bytes)", len(typeStr))
	}
	header := make([]byte, 2+len(typeStr)+4)
	binary.BigEndian.PutUint16(header[0:2], uint16(len(typeStr)))
	copy(header[2:], typeStr)
	binary.BigEndian.PutUint32(header[2+len(typeStr):], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) (typeStr string, payload []byte, err error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, err
	}
	typeLen := binary.BigEndian.Uint16(lenBuf[:])
	typeBuf := make([]byte, typeLen)
	if _, err := io.ReadFull(r, typeBuf); err != nil {
		return "", nil, err
	}

	var payloadLenBuf [4]byte
	if _, err := io.ReadFull(r, payloadLenBuf[:]); err != nil {
		return "", nil, err
	}
	payloadLen := binary.BigEndian.Uint32(payloadLenBuf[:])
	if payloadLen > maxPayloadSize {
		return "", nil, fmt.Errorf("relay: frame payload too large (%d bytes)", payloadLen)
	}
	payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, err
	}
	return string(typeBuf), payload, nil
}
