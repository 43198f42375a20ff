package codec

import (
	"encoding/json"
	"fmt"

	"mini-rpc/message"
)

// JSONCodec uses Go's standard library encoding/json.
//
// Because JSON erases static type, decoding a request or response through
// this codec loses the original Go types of RpcRequest.Args / RpcResponse.Data
// (numbers become float64, structs become map[string]any, etc). ReshapeRequest
// and ReshapeResponse perform a re-coercion pass: each loose value is
// re-marshaled and re-parsed under its declared type descriptor.
// The other three codecs carry types natively and need no such pass.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (c *JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

func (c *JSONCodec) ID() ID { return IDJSON }

func (c *JSONCodec) Name() string { return NameJSON }

// typeDescriptors maps the small set of descriptor strings this framework
// uses for ParameterTypes/DataType to a constructor for a fresh pointer of
// that Go type, so a loose JSON value can be re-parsed into it.
var typeDescriptors = map[string]func() any{
	"string":  func() any { return new(string) },
	"int":     func() any { return new(int) },
	"int64":   func() any { return new(int64) },
	"float64": func() any { return new(float64) },
	"bool":    func() any { return new(bool) },
	"bytes":   func() any { return new([]byte) },
}

// reshapeValue re-serializes loose and re-parses it under the Go type named
// by descriptor. Unknown descriptors are left as-is (the caller receives
// whatever encoding/json produced: typically a map[string]any), since the
// framework cannot construct an arbitrary named struct from a string alone.
func reshapeValue(loose any, descriptor string) (any, error) {
	ctor, ok := typeDescriptors[descriptor]
	if !ok {
		return loose, nil
	}
	raw, err := json.Marshal(loose)
	if err != nil {
		return nil, fmt.Errorf("reshape %s: marshal loose value: %w", descriptor, err)
	}
	target := ctor()
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("reshape %s: unmarshal into target: %w", descriptor, err)
	}
	return derefPtr(target), nil
}

func derefPtr(p any) any {
	switch v := p.(type) {
	case *string:
		return *v
	case *int:
		return *v
	case *int64:
		return *v
	case *float64:
		return *v
	case *bool:
		return *v
	case *[]byte:
		return *v
	default:
		return p
	}
}

// ReshapeRequest re-coerces every req.Args[i] into req.ParameterTypes[i] in
// place, per the JSON-specific reshape rule.
func ReshapeRequest(req *message.RpcRequest) error {
	for i := range req.Args {
		if i >= len(req.ParameterTypes) {
			break
		}
		reshaped, err := reshapeValue(req.Args[i], req.ParameterTypes[i])
		if err != nil {
			return err
		}
		req.Args[i] = reshaped
	}
	return nil
}

// ReshapeResponse re-coerces resp.Data into resp.DataType in place, when
// both are present.
func ReshapeResponse(resp *message.RpcResponse) error {
	if resp.Data == nil || resp.DataType == "" {
		return nil
	}
	reshaped, err := reshapeValue(resp.Data, resp.DataType)
	if err != nil {
		return err
	}
	resp.Data = reshaped
	return nil
}
