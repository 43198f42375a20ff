package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"mini-rpc/message"
)

// KryoCodec is the newer of the two compact binary kinds. Rather than
// hand-rolling a length-prefixed layout (that's HessianCodec's job), it
// frames each envelope field using protobuf's low-level wire primitives
// (tag + length-delimited / varint), borrowed from
// google.golang.org/protobuf/encoding/protowire without requiring a
// generated .proto message type. As with HessianCodec, the variable-shaped
// parts of the envelope (ParameterTypes/Args, Data) travel as JSON blobs
// inside a single length-delimited field.
type KryoCodec struct{}

func (c *KryoCodec) ID() ID { return IDKryo }

func (c *KryoCodec) Name() string { return NameKryo }

const (
	kryoFieldServiceName    = 1
	kryoFieldMethodName     = 2
	kryoFieldServiceVersion = 3
	kryoFieldParamTypes     = 4
	kryoFieldArgs           = 5

	kryoFieldDataType  = 1
	kryoFieldMessage   = 2
	kryoFieldData      = 3
	kryoFieldException = 4
	kryoFieldExcType   = 5
	kryoFieldExcMsg    = 6
)

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// parseFields walks a buffer of tag-framed fields and returns the bytes
// payload per field number (for BytesType fields) and the varint payload
// per field number (for VarintType fields).
func parseFields(data []byte) (map[protowire.Number][]byte, map[protowire.Number]uint64, error) {
	bytesFields := make(map[protowire.Number][]byte)
	varintFields := make(map[protowire.Number]uint64)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, nil, fmt.Errorf("KryoCodec: malformed tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, nil, fmt.Errorf("KryoCodec: malformed bytes field %d: %w", num, protowire.ParseError(n))
			}
			bytesFields[num] = v
			data = data[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, nil, fmt.Errorf("KryoCodec: malformed varint field %d: %w", num, protowire.ParseError(n))
			}
			varintFields[num] = v
			data = data[n:]
		default:
			return nil, nil, fmt.Errorf("KryoCodec: unsupported wire type %v for field %d", typ, num)
		}
	}
	return bytesFields, varintFields, nil
}

func (c *KryoCodec) Encode(v any) ([]byte, error) {
	switch msg := v.(type) {
	case *message.RpcRequest:
		return encodeKryoRequest(msg)
	case *message.RpcResponse:
		return encodeKryoResponse(msg)
	default:
		return nil, fmt.Errorf("KryoCodec: unsupported value type %T", v)
	}
}

func (c *KryoCodec) Decode(data []byte, v any) error {
	switch msg := v.(type) {
	case *message.RpcRequest:
		return decodeKryoRequest(data, msg)
	case *message.RpcResponse:
		return decodeKryoResponse(data, msg)
	default:
		return fmt.Errorf("KryoCodec: unsupported value type %T", v)
	}
}

func encodeKryoRequest(req *message.RpcRequest) ([]byte, error) {
	paramTypesBlob, err := json.Marshal(req.ParameterTypes)
	if err != nil {
		return nil, err
	}
	argsBlob, err := json.Marshal(req.Args)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = appendBytesField(b, kryoFieldServiceName, []byte(req.ServiceName))
	b = appendBytesField(b, kryoFieldMethodName, []byte(req.MethodName))
	b = appendBytesField(b, kryoFieldServiceVersion, []byte(req.ServiceVersion))
	b = appendBytesField(b, kryoFieldParamTypes, paramTypesBlob)
	b = appendBytesField(b, kryoFieldArgs, argsBlob)
	return b, nil
}

func decodeKryoRequest(data []byte, req *message.RpcRequest) error {
	fields, _, err := parseFields(data)
	if err != nil {
		return err
	}
	req.ServiceName = string(fields[kryoFieldServiceName])
	req.MethodName = string(fields[kryoFieldMethodName])
	req.ServiceVersion = string(fields[kryoFieldServiceVersion])
	if err := json.Unmarshal(fields[kryoFieldParamTypes], &req.ParameterTypes); err != nil {
		return err
	}
	return json.Unmarshal(fields[kryoFieldArgs], &req.Args)
}

func encodeKryoResponse(resp *message.RpcResponse) ([]byte, error) {
	dataBlob, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = appendBytesField(b, kryoFieldDataType, []byte(resp.DataType))
	b = appendBytesField(b, kryoFieldMessage, []byte(resp.Message))
	b = appendBytesField(b, kryoFieldData, dataBlob)
	if resp.Exception != nil {
		b = appendVarintField(b, kryoFieldException, 1)
		b = appendBytesField(b, kryoFieldExcType, []byte(resp.Exception.Type))
		b = appendBytesField(b, kryoFieldExcMsg, []byte(resp.Exception.Message))
	} else {
		b = appendVarintField(b, kryoFieldException, 0)
	}
	return b, nil
}

func decodeKryoResponse(data []byte, resp *message.RpcResponse) error {
	bytesFields, varintFields, err := parseFields(data)
	if err != nil {
		return err
	}
	resp.DataType = string(bytesFields[kryoFieldDataType])
	resp.Message = string(bytesFields[kryoFieldMessage])
	if blob := bytesFields[kryoFieldData]; len(blob) > 0 && string(blob) != "null" {
		if err := json.Unmarshal(blob, &resp.Data); err != nil {
			return err
		}
	}
	if varintFields[kryoFieldException] == 1 {
		resp.Exception = &message.ExceptionInfo{
			Type:    string(bytesFields[kryoFieldExcType]),
			Message: string(bytesFields[kryoFieldExcMsg]),
		}
	}
	return nil
}
