// Package codec provides the pluggable serialization layer for mini-rpc.
//
// Four named kinds are implemented, matching the wire id/name table fixed
// by the framework's external interface: "jdk" (Go's native object-graph
// format, encoding/gob), "json" (human-readable, cross-language), "kryo"
// (a compact binary framed with protobuf's low-level wire primitives), and
// "hessian" (an older compact binary with hand-rolled length-prefixed
// fields). The wire id is a small integer stored in the protocol header;
// the configuration surface selects a codec by name. The mapping between
// id and name is fixed and must never be derived from declaration order.
package codec

import "mini-rpc/errs"

// ID identifies the serialization format as stored in the 1-byte
// "serializer" field of a protocol header.
type ID byte

const (
	IDJDK     ID = 0
	IDJSON    ID = 1
	IDKryo    ID = 2
	IDHessian ID = 3
)

const (
	NameJDK     = "jdk"
	NameJSON    = "json"
	NameKryo    = "kryo"
	NameHessian = "hessian"
)

// Codec converts request/response values to and from bytes.
//
// A codec's kind-singleton may be accessed from many goroutines
// concurrently; every implementation here is stateless, so a single
// instance is safe to share.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	ID() ID
	Name() string
}

var byID = map[ID]Codec{
	IDJDK:     &JDKCodec{},
	IDJSON:    &JSONCodec{},
	IDKryo:    &KryoCodec{},
	IDHessian: &HessianCodec{},
}

var byName = map[string]Codec{
	NameJDK:     byID[IDJDK],
	NameJSON:    byID[IDJSON],
	NameKryo:    byID[IDKryo],
	NameHessian: byID[IDHessian],
}

// ByID returns the codec registered for a wire id, or a ProtocolError if
// the id is not in the fixed table.
func ByID(id ID) (Codec, error) {
	c, ok := byID[id]
	if !ok {
		return nil, errs.NewProtocolError("unknown serializer")
	}
	return c, nil
}

// ByName returns the codec registered for a configuration-surface name,
// or a PluginNotFound-style error if the name is unknown.
func ByName(name string) (Codec, error) {
	c, ok := byName[name]
	if !ok {
		return nil, &errs.PluginNotFound{Interface: "codec.Codec", Key: name}
	}
	return c, nil
}
