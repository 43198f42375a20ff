// Package protocol implements mini-rpc's binary wire protocol: a fixed
// 17-byte header followed by a variable-length body, and a reassembler
// that turns an arbitrary partition of a TCP byte stream back into a
// sequence of complete frames.
//
// Frame format:
//
//	0      1      2      3      4      5                 13               17
//	┌──────┬──────┬──────┬──────┬──────┬─────────────────┬────────────────┬───────────────┐
//	│magic │ver   │ser   │type  │status│   requestId     │   bodyLength   │    body ...    │
//	│ 0x01 │ 0x01 │      │      │      │  uint64 BE (8B)  │ uint32 BE (4B) │ bodyLength B   │
//	└──────┴──────┴──────┴──────┴──────┴─────────────────┴────────────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"io"

	"mini-rpc/errs"
)

const (
	Magic      byte = 0x01
	Version    byte = 0x01
	HeaderSize int  = 17 // 1+1+1+1+1+8+4
)

// MsgType distinguishes request, response, heartbeat, and reserved frames.
type MsgType byte

const (
	MsgTypeRequest   MsgType = 0
	MsgTypeResponse  MsgType = 1
	MsgTypeHeartbeat MsgType = 2
	MsgTypeOther     MsgType = 3
)

// Status is the protocol-level outcome of a frame; application-level
// failures travel inside the body's Exception field instead.
type Status byte

const (
	StatusOK          Status = 0
	StatusBadRequest  Status = 20
	StatusBadResponse Status = 50
)

// Header is the fixed 17-byte frame header.
type Header struct {
	Serializer byte    // codec.ID
	Type       MsgType
	Status     Status
	RequestID  uint64
	BodyLen    uint32
}

// EncodeFrame writes a complete frame (header + body) to w. header.BodyLen
// is overwritten with len(body) before writing, so callers need not set it
// themselves.
func EncodeFrame(w io.Writer, h *Header, body []byte) error {
	h.BodyLen = uint32(len(body))

	buf := make([]byte, HeaderSize)
	buf[0] = Magic
	buf[1] = Version
	buf[2] = h.Serializer
	buf[3] = byte(h.Type)
	buf[4] = byte(h.Status)
	binary.BigEndian.PutUint64(buf[5:13], h.RequestID)
	binary.BigEndian.PutUint32(buf[13:17], h.BodyLen)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFrame reads exactly one complete frame from r using io.ReadFull,
// which blocks until either the full frame arrives or the reader errors.
// It suits a reader that expects exactly one frame, such as a caller
// that sends one request on a connection and waits for its reply; the
// client transport and the server read through a Reassembler instead.
func DecodeFrame(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	h, err := decodeHeader(headerBuf)
	if err != nil {
		return nil, nil, err
	}

	body := make([]byte, h.BodyLen)
	if h.BodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, err
		}
	}
	return h, body, nil
}

func decodeHeader(buf []byte) (*Header, error) {
	if buf[0] != Magic {
		return nil, errs.NewProtocolError("bad magic")
	}
	if buf[1] != Version {
		return nil, errs.NewProtocolError("unsupported version")
	}
	msgType := MsgType(buf[3])
	if msgType > MsgTypeOther {
		return nil, errs.NewProtocolError("unknown type")
	}
	return &Header{
		Serializer: buf[2],
		Type:       msgType,
		Status:     Status(buf[4]),
		RequestID:  binary.BigEndian.Uint64(buf[5:13]),
		BodyLen:    binary.BigEndian.Uint32(buf[13:17]),
	}, nil
}
