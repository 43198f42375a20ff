// Package server implements the mini-rpc provider side: service exposure,
// a goroutine-per-connection accept loop, per-frame reflective dispatch
// through a middleware chain, and graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads + reassembles frames)
//	  → per frame: go handleFrame (parallel dispatch)
//	    → decode → middleware chain → dispatch (reflect.Call) → encode → write response
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-rpc/codec"
	"mini-rpc/errs"
	"mini-rpc/message"
	"mini-rpc/middleware"
	"mini-rpc/protocol"
	"mini-rpc/registry"
)

// Server exposes Go struct implementations as remotely callable services,
// dispatching inbound frames against them.
type Server struct {
	serviceMap map[string]*service // "name:version" -> service
	listener   net.Listener
	wg         sync.WaitGroup
	shutdown   atomic.Bool

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	log      *zap.Logger
	registry registry.RemoteRegistry

	advertiseHost string
	advertisePort int
}

func NewServer() *Server {
	return &Server{
		serviceMap: make(map[string]*service),
		log:        zap.NewNop(),
	}
}

func (svr *Server) SetLogger(log *zap.Logger) { svr.log = log }

// Use registers a middleware; middlewares run outermost-first, in the
// order added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Expose registers rcvr (a pointer to a struct) under the given version,
// making its dispatchable methods remotely callable as
// "{struct name}:{version}".
func (svr *Server) Expose(rcvr any, version string) error {
	svc, err := newService(rcvr, version)
	if err != nil {
		return err
	}
	meta := message.ServiceMetaInfo{ServiceName: svc.name, ServiceVersion: version}
	svr.serviceMap[meta.ServiceKey()] = svc
	return nil
}

// Serve listens on address, optionally registers every exposed service
// with reg under advertiseHost:advertisePort (the routable address
// clients should dial, which may differ from the local listen address),
// and accepts connections until Shutdown is called.
func (svr *Server) Serve(network, address, advertiseHost string, advertisePort int, reg registry.RemoteRegistry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)
	svr.advertiseHost = advertiseHost
	svr.advertisePort = advertisePort

	if reg != nil {
		svr.registry = reg
		for _, svc := range svr.serviceMap {
			meta := message.ServiceMetaInfo{
				ServiceName:    svc.name,
				ServiceVersion: svc.version,
				ServiceHost:    advertiseHost,
				ServicePort:    advertisePort,
			}
			meta.Normalize()
			if err := reg.Register(meta); err != nil {
				svr.log.Warn("service registration failed", zap.String("serviceKey", meta.ServiceKey()), zap.Error(err))
			}
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

// handleConn reads and reassembles this connection's byte stream in a
// single goroutine (reads must stay sequential to parse frame boundaries)
// but dispatches each resulting frame to its own goroutine so a slow
// handler never blocks the frames behind it.
func (svr *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{}
	reasm := protocol.NewReassembler()
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := reasm.Feed(buf[:n])
			for _, f := range frames {
				go svr.handleFrame(f, conn, writeMu)
			}
			if ferr != nil {
				svr.log.Warn("frame reassembly failed, closing connection", zap.Error(ferr))
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (svr *Server) handleFrame(f protocol.Frame, conn net.Conn, writeMu *sync.Mutex) {
	if f.Header.Type == protocol.MsgTypeHeartbeat {
		return
	}

	svr.wg.Add(1)
	defer svr.wg.Done()

	value, err := protocol.DecodeMessage(f.Header, f.Body)
	if err != nil {
		svr.log.Warn("failed to decode inbound frame", zap.Error(err))
		return
	}
	req, ok := value.(*message.RpcRequest)
	if !ok {
		svr.log.Warn("inbound frame was not a request", zap.Uint64("requestId", f.Header.RequestID))
		return
	}

	resp := svr.handler(context.Background(), req)

	c, err := codec.ByID(codec.ID(f.Header.Serializer))
	if err != nil {
		svr.log.Warn("cannot encode response, unknown serializer", zap.Error(err))
		return
	}

	replyHeader := &protocol.Header{
		Serializer: f.Header.Serializer,
		Type:       protocol.MsgTypeResponse,
		Status:     protocol.StatusOK,
		RequestID:  f.Header.RequestID,
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.EncodeMessage(conn, replyHeader, resp, c); err != nil {
		svr.log.Warn("failed to write response frame", zap.Error(err))
	}
}

// dispatch is the business handler wrapped by the middleware chain: it
// resolves the target service and method, reflectively invokes it, and
// translates the outcome into an RpcResponse. Lookup and invocation
// failures never propagate as Go errors here — they're captured into the
// response's Exception field: the protocol-level status stays OK.
func (svr *Server) dispatch(_ context.Context, req *message.RpcRequest) *message.RpcResponse {
	key := message.ServiceMetaInfo{ServiceName: req.ServiceName, ServiceVersion: req.ServiceVersion}.ServiceKey()

	svc, ok := svr.serviceMap[key]
	if !ok {
		return exceptionResponse(&errs.DispatchError{
			ServiceName: req.ServiceName,
			MethodName:  req.MethodName,
			Err:         fmt.Errorf("service not exposed: %s", key),
		})
	}
	mType, ok := svc.method[req.MethodName]
	if !ok {
		return exceptionResponse(&errs.DispatchError{
			ServiceName: req.ServiceName,
			MethodName:  req.MethodName,
			Err:         fmt.Errorf("method not found: %s", req.MethodName),
		})
	}

	argv, err := decodeArg(req, mType)
	if err != nil {
		return exceptionResponse(&errs.DispatchError{ServiceName: req.ServiceName, MethodName: req.MethodName, Err: err})
	}
	replyv := newReply(mType)

	if err := svc.call(mType, argv, replyv); err != nil {
		return exceptionResponse(&errs.DispatchError{ServiceName: req.ServiceName, MethodName: req.MethodName, Err: err})
	}

	return &message.RpcResponse{
		Data:     replyv.Elem().Interface(),
		DataType: mType.ReplyType.Name(),
		Message:  "ok",
	}
}

func exceptionResponse(err *errs.DispatchError) *message.RpcResponse {
	return &message.RpcResponse{
		Message:   "error: " + err.Error(),
		Exception: &message.ExceptionInfo{Type: fmt.Sprintf("%T", err), Message: err.Error()},
	}
}

// Shutdown deregisters every exposed service, stops accepting new
// connections, and waits up to timeout for in-flight requests to finish.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registry != nil {
		for _, svc := range svr.serviceMap {
			meta := message.ServiceMetaInfo{
				ServiceName:    svc.name,
				ServiceVersion: svc.version,
				ServiceHost:    svr.advertiseHost,
				ServicePort:    svr.advertisePort,
			}
			meta.Normalize()
			if err := svr.registry.Unregister(meta); err != nil {
				svr.log.Warn("service deregistration failed", zap.String("serviceKey", meta.ServiceKey()), zap.Error(err))
			}
		}
	}

	svr.shutdown.Store(true)
	if svr.listener != nil {
		svr.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("mini-rpc: timeout waiting for in-flight requests to finish")
	}
}
