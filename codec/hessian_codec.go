package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"mini-rpc/message"
)

// HessianCodec is the older of the two compact binary kinds: every
// envelope field is framed by hand with an explicit length prefix,
// matching the layout the source framework's own BinaryCodec used for its
// single RPCMessage envelope. ParameterTypes/Args and Data remain
// JSON-encoded blobs within the frame — the gain here, as in the original,
// comes from avoiding JSON's field-name repetition and escaping for the
// envelope itself, not from replacing JSON everywhere.
type HessianCodec struct{}

func (c *HessianCodec) ID() ID { return IDHessian }

func (c *HessianCodec) Name() string { return NameHessian }

func (c *HessianCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.RpcRequest:
		return encodeHessianRequest(msg)
	case *message.RpcResponse:
		return encodeHessianResponse(msg)
	default:
		return nil, fmt.Errorf("HessianCodec: unsupported value type %T", v)
	}
}

func (c *HessianCodec) Decode(data []byte, v any) error {
	switch msg := v.(type) {
	case *message.RpcRequest:
		return decodeHessianRequest(data, msg)
	case *message.RpcResponse:
		return decodeHessianResponse(data, msg)
	default:
		return fmt.Errorf("HessianCodec: unsupported value type %T", v)
	}
}

func putStr(buf []byte, offset int, s string) int {
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(s)))
	offset += 2
	copy(buf[offset:offset+len(s)], s)
	return offset + len(s)
}

func readStr(data []byte, offset int) (string, int) {
	n := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	s := string(data[offset : offset+n])
	return s, offset + n
}

func putBytes(buf []byte, offset int, b []byte) int {
	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(b)))
	offset += 4
	copy(buf[offset:offset+len(b)], b)
	return offset + len(b)
}

func readBytes(data []byte, offset int) ([]byte, int) {
	n := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	b := make([]byte, n)
	copy(b, data[offset:offset+n])
	return b, offset + n
}

func encodeHessianRequest(req *message.RpcRequest) ([]byte, error) {
	paramTypesBlob, err := json.Marshal(req.ParameterTypes)
	if err != nil {
		return nil, err
	}
	argsBlob, err := json.Marshal(req.Args)
	if err != nil {
		return nil, err
	}

	total := 2 + len(req.ServiceName) +
		2 + len(req.MethodName) +
		2 + len(req.ServiceVersion) +
		4 + len(paramTypesBlob) +
		4 + len(argsBlob)
	buf := make([]byte, total)
	offset := 0
	offset = putStr(buf, offset, req.ServiceName)
	offset = putStr(buf, offset, req.MethodName)
	offset = putStr(buf, offset, req.ServiceVersion)
	offset = putBytes(buf, offset, paramTypesBlob)
	_ = putBytes(buf, offset, argsBlob)
	return buf, nil
}

func decodeHessianRequest(data []byte, req *message.RpcRequest) error {
	offset := 0
	req.ServiceName, offset = readStr(data, offset)
	req.MethodName, offset = readStr(data, offset)
	req.ServiceVersion, offset = readStr(data, offset)
	var paramTypesBlob, argsBlob []byte
	paramTypesBlob, offset = readBytes(data, offset)
	argsBlob, _ = readBytes(data, offset)
	if err := json.Unmarshal(paramTypesBlob, &req.ParameterTypes); err != nil {
		return err
	}
	return json.Unmarshal(argsBlob, &req.Args)
}

func encodeHessianResponse(resp *message.RpcResponse) ([]byte, error) {
	dataBlob, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, err
	}
	hasException := resp.Exception != nil
	excType, excMessage := "", ""
	if hasException {
		excType, excMessage = resp.Exception.Type, resp.Exception.Message
	}

	total := 2 + len(resp.DataType) +
		2 + len(resp.Message) +
		4 + len(dataBlob) +
		1 +
		2 + len(excType) +
		2 + len(excMessage)
	buf := make([]byte, total)
	offset := 0
	offset = putStr(buf, offset, resp.DataType)
	offset = putStr(buf, offset, resp.Message)
	offset = putBytes(buf, offset, dataBlob)
	if hasException {
		buf[offset] = 1
	} else {
		buf[offset] = 0
	}
	offset++
	offset = putStr(buf, offset, excType)
	_ = putStr(buf, offset, excMessage)
	return buf, nil
}

func decodeHessianResponse(data []byte, resp *message.RpcResponse) error {
	offset := 0
	resp.DataType, offset = readStr(data, offset)
	resp.Message, offset = readStr(data, offset)
	var dataBlob []byte
	dataBlob, offset = readBytes(data, offset)
	if len(dataBlob) > 0 && string(dataBlob) != "null" {
		if err := json.Unmarshal(dataBlob, &resp.Data); err != nil {
			return err
		}
	}
	hasException := data[offset] == 1
	offset++
	excType, o := readStr(data, offset)
	excMessage, _ := readStr(data, o)
	if hasException {
		resp.Exception = &message.ExceptionInfo{Type: excType, Message: excMessage}
	}
	return nil
}
