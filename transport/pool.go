package transport

import (
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mini-rpc/codec"
)

// Pool lazily dials and caches one multiplexed ClientTransport per
// endpoint address, so repeated calls to the same provider reuse a single
// connection instead of opening one per call.
type Pool struct {
	mu             sync.Mutex
	codecID        codec.ID
	connectTimeout time.Duration
	conns          map[string]*ClientTransport
	log            *zap.Logger
}

func NewPool(codecID codec.ID) *Pool {
	return &Pool{
		codecID:        codecID,
		connectTimeout: 5 * time.Second,
		conns:          make(map[string]*ClientTransport),
		log:            zap.NewNop(),
	}
}

func (p *Pool) SetLogger(log *zap.Logger) { p.log = log }

// Get returns the cached transport for addr, dialing a new one if none
// exists yet or the cached one has died.
func (p *Pool) Get(addr string) (*ClientTransport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.conns[addr]; ok && !t.isClosed() {
		return t, nil
	}

	t, err := Dial(addr, p.codecID, p.connectTimeout)
	if err != nil {
		return nil, err
	}
	t.log = p.log
	p.conns[addr] = t
	return t, nil
}

// Close shuts down every pooled connection, aggregating any close errors.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errAgg error
	for addr, t := range p.conns {
		if err := t.Close(); err != nil {
			errAgg = multierr.Append(errAgg, err)
		}
		delete(p.conns, addr)
	}
	return errAgg
}
