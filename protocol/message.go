package protocol

import (
	"io"

	"mini-rpc/codec"
	"mini-rpc/errs"
	"mini-rpc/message"
)

// EncodeMessage serializes value with c, stamps h.Serializer accordingly,
// and writes the resulting frame to w.
func EncodeMessage(w io.Writer, h *Header, value any, c codec.Codec) error {
	body, err := c.Encode(value)
	if err != nil {
		return &errs.SerializationError{Codec: c.Name(), Err: err}
	}
	h.Serializer = byte(c.ID())
	return EncodeFrame(w, h, body)
}

// DecodeMessage resolves the serializer named by h.Serializer and
// deserializes body into an RpcRequest (MsgTypeRequest) or RpcResponse
// (MsgTypeResponse). Heartbeat and Other frames carry no typed body and
// return ProtocolError("unsupported type"); they are reserved for future
// use and must still round-trip through the header layer unchanged.
func DecodeMessage(h *Header, body []byte) (any, error) {
	c, err := codec.ByID(codec.ID(h.Serializer))
	if err != nil {
		return nil, err
	}

	switch h.Type {
	case MsgTypeRequest:
		req := &message.RpcRequest{}
		if err := c.Decode(body, req); err != nil {
			return nil, &errs.SerializationError{Codec: c.Name(), Err: err}
		}
		if c.ID() == codec.IDJSON {
			if err := codec.ReshapeRequest(req); err != nil {
				return nil, &errs.SerializationError{Codec: c.Name(), Err: err}
			}
		}
		return req, nil

	case MsgTypeResponse:
		resp := &message.RpcResponse{}
		if err := c.Decode(body, resp); err != nil {
			return nil, &errs.SerializationError{Codec: c.Name(), Err: err}
		}
		if c.ID() == codec.IDJSON {
			if err := codec.ReshapeResponse(resp); err != nil {
				return nil, &errs.SerializationError{Codec: c.Name(), Err: err}
			}
		}
		return resp, nil

	default:
		return nil, errs.NewProtocolError("unsupported type")
	}
}
