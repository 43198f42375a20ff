package server

import (
	"encoding/json"
	"reflect"

	"mini-rpc/message"
)

// decodeArg builds a *ArgType value for mType from req.Args[0]. Args[0]
// arrives as whatever shape the wire serializer produced — a concrete Go
// struct (gob), a tagged binary blob already JSON-decoded (hessian/kryo),
// or a loose map (json) — so the one representation every serializer can
// produce is re-marshaled to JSON and re-parsed into the method's declared
// argument type. This mirrors how the JSON reshape in package codec
// recovers static types from a loose wire value, applied uniformly here
// regardless of which serializer produced the request.
func decodeArg(req *message.RpcRequest, mType *methodType) (reflect.Value, error) {
	argv := reflect.New(mType.ArgType)
	if len(req.Args) == 0 {
		return argv, nil
	}
	raw, err := json.Marshal(req.Args[0])
	if err != nil {
		return reflect.Value{}, err
	}
	if err := json.Unmarshal(raw, argv.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return argv, nil
}

func newReply(mType *methodType) reflect.Value {
	return reflect.New(mType.ReplyType)
}
