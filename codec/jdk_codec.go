package codec

import (
	"bytes"
	"encoding/gob"
)

// JDKCodec is the "native object graph" serializer: it leans on Go's own
// encoding/gob the way the source framework leans on native Java
// serialization for its "jdk" kind. Gob requires every concrete type that
// can appear inside an RpcRequest.Args / RpcResponse.Data interface value
// to be registered up front; the common scalar and collection shapes used
// by this framework's own tests and examples are registered in init().
// Callers passing a richer custom type through Args must gob.Register it
// themselves before using this codec.
type JDKCodec struct{}

func init() {
	for _, v := range []any{
		"", 0, int64(0), float64(0), false, []byte(nil),
		map[string]any{}, []any{},
	} {
		gob.Register(v)
	}
}

func (c *JDKCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *JDKCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (c *JDKCodec) ID() ID { return IDJDK }

func (c *JDKCodec) Name() string { return NameJDK }
