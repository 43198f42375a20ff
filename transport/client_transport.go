// Package transport implements the client-side transport layer: one
// pooled connection per endpoint, multiplexing concurrent calls over it
// using requestId for correlation instead of dialing a fresh socket per
// call.
//
//	goroutine-1 ──Call(id=1)──┐
//	goroutine-2 ──Call(id=2)──┼──→ single TCP conn ──→ provider
//	goroutine-3 ──Call(id=3)──┘
//
//	recvLoop:  ←── response(id=2) → pending[2] chan ← response → goroutine-2 wakes
package transport

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mini-rpc/codec"
	"mini-rpc/errs"
	"mini-rpc/message"
	"mini-rpc/protocol"
)

type callResult struct {
	resp *message.RpcResponse
	err  error
}

// newRequestID derives the 8-byte header requestId from a freshly
// generated UUID instead of a per-connection counter, so an id stays
// unique across reconnects and is safe to echo in logs/traces without
// colliding with a prior connection's in-flight ids.
func newRequestID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

// ClientTransport manages one multiplexed TCP connection to a single
// endpoint. Multiple goroutines may call it concurrently; writes are
// serialized so one frame's header and body are never interleaved with
// another's.
type ClientTransport struct {
	addr    string
	conn    net.Conn
	codecID codec.ID
	log     *zap.Logger

	pending sync.Map // map[uint64]chan callResult
	sending sync.Mutex
	reasm   *protocol.Reassembler

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens a new connection and starts its background receive and
// heartbeat loops.
func Dial(addr string, codecID codec.ID, connectTimeout time.Duration) (*ClientTransport, error) {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, &errs.TransportIO{Addr: addr, Err: err}
	}
	t := &ClientTransport{
		addr:    addr,
		conn:    conn,
		codecID: codecID,
		log:     zap.NewNop(),
		reasm:   protocol.NewReassembler(),
		closed:  make(chan struct{}),
	}
	go t.recvLoop()
	go t.heartbeatLoop(30 * time.Second)
	return t, nil
}

// Call sends req and blocks until its matching response arrives, ctx is
// done, or the connection dies — whichever comes first. ctx's deadline, if
// any, is what backs the configurable per-call timeout.
func (t *ClientTransport) Call(ctx context.Context, req *message.RpcRequest) (*message.RpcResponse, error) {
	requestID := newRequestID()

	respCh := make(chan callResult, 1)
	t.pending.Store(requestID, respCh)
	defer t.pending.Delete(requestID)

	c, err := codec.ByID(t.codecID)
	if err != nil {
		return nil, err
	}

	header := &protocol.Header{
		Serializer: byte(t.codecID),
		Type:       protocol.MsgTypeRequest,
		Status:     protocol.StatusOK,
		RequestID:  requestID,
	}

	t.sending.Lock()
	err = protocol.EncodeMessage(t.conn, header, req, c)
	t.sending.Unlock()
	if err != nil {
		return nil, &errs.TransportIO{Addr: t.addr, Err: err}
	}

	select {
	case res := <-respCh:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, &errs.TransportTimeout{Addr: t.addr}
	case <-t.closed:
		return nil, &errs.TransportIO{Addr: t.addr, Err: net.ErrClosed}
	}
}

// recvLoop is the single reader of this connection's byte stream — TCP
// reads must stay sequential to parse frame boundaries correctly, so only
// one goroutine may ever call conn.Read.
func (t *ClientTransport) recvLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			frames, ferr := t.reasm.Feed(buf[:n])
			for _, f := range frames {
				t.dispatch(f)
			}
			if ferr != nil {
				t.closeAllPending(ferr)
				t.Close()
				return
			}
		}
		if err != nil {
			t.closeAllPending(err)
			t.Close()
			return
		}
	}
}

func (t *ClientTransport) dispatch(f protocol.Frame) {
	if f.Header.Type != protocol.MsgTypeResponse {
		return
	}
	ch, ok := t.pending.LoadAndDelete(f.Header.RequestID)
	if !ok {
		return
	}
	rc := ch.(chan callResult)

	value, err := protocol.DecodeMessage(f.Header, f.Body)
	if err != nil {
		rc <- callResult{err: err}
		return
	}
	resp, ok := value.(*message.RpcResponse)
	if !ok {
		rc <- callResult{err: errs.NewProtocolError("expected RpcResponse body")}
		return
	}
	rc <- callResult{resp: resp}
}

func (t *ClientTransport) closeAllPending(cause error) {
	wrapped := &errs.TransportIO{Addr: t.addr, Err: cause}
	t.pending.Range(func(key, value any) bool {
		value.(chan callResult) <- callResult{err: wrapped}
		t.pending.Delete(key)
		return true
	})
}

// heartbeatLoop sends a bodyless heartbeat frame on every tick so
// intermediate equipment doesn't mistake an idle connection for a dead
// one. The provider reads and discards heartbeat frames.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			header := &protocol.Header{Type: protocol.MsgTypeHeartbeat, Serializer: byte(t.codecID)}
			t.sending.Lock()
			err := protocol.EncodeFrame(t.conn, header, nil)
			t.sending.Unlock()
			if err != nil {
				t.Close()
				return
			}
		}
	}
}

func (t *ClientTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// Close shuts down the connection; safe to call more than once.
func (t *ClientTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}
