package server

import (
	"fmt"
	"reflect"
)

// methodType holds the reflection metadata needed to invoke one exposed
// method: the method itself plus the concrete (non-pointer) types of its
// args and reply parameters.
type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// service wraps one registered implementation (e.g. &Arith{}) and the
// subset of its exported methods that match the RPC calling convention,
// indexed by method name for dispatch.
type service struct {
	name    string
	version string
	rcvr    reflect.Value
	typ     reflect.Type
	method  map[string]*methodType
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// newService validates rcvr (must be a pointer to a struct) and scans its
// exported methods for the dispatchable signature
// `func(args *Args, reply *Reply) error`. Non-matching methods are
// silently skipped — they simply aren't remotely callable.
func newService(rcvr any, version string) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("mini-rpc: implementation must be a pointer, got %s", typ.Kind())
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("mini-rpc: implementation must point to a struct, got %s", typ.Elem().Kind())
	}

	svc := &service{
		name:    typ.Elem().Name(),
		version: version,
		rcvr:    reflect.ValueOf(rcvr),
		typ:     typ,
		method:  make(map[string]*methodType),
	}
	svc.registerMethods()
	return svc, nil
}

// registerMethods scans every exported method looking for exactly the
// 3-in/1-out shape `func(receiver, *Args, *Reply) error`.
func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		m := s.typ.Method(i)
		if m.Type.NumIn() != 3 || m.Type.NumOut() != 1 {
			continue
		}
		if m.Type.Out(0) != errorType {
			continue
		}
		if m.Type.In(1).Kind() != reflect.Ptr || m.Type.In(2).Kind() != reflect.Ptr {
			continue
		}
		s.method[m.Name] = &methodType{
			method:    m,
			ArgType:   m.Type.In(1).Elem(),
			ReplyType: m.Type.In(2).Elem(),
		}
	}
}

// call invokes mType on the receiver registered through Expose, given
// pointer reflect.Values for args and reply (as produced by reflect.New).
// Every call shares that one receiver; no fresh instance is constructed
// per call.
func (s *service) call(mType *methodType, argv, replyv reflect.Value) error {
	results := mType.method.Func.Call([]reflect.Value{s.rcvr, argv, replyv})
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}
