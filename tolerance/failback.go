package tolerance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"mini-rpc/message"
)

// queueKey is the Redis list a failed call is pushed onto, one list per
// service key so a worker can be scoped to a single service.
func queueKey(serviceKey string) string { return "rpc:failback:" + serviceKey }

// FailBack accepts the failure, serializes the original request onto a
// Redis list, and reports success to the caller immediately — the call is
// considered "handled" in the sense that it will be retried asynchronously,
// not that it actually completed.
type FailBack struct {
	Client *redis.Client
	Log    *zap.Logger
}

func NewFailBack(client *redis.Client) *FailBack {
	return &FailBack{Client: client, Log: zap.NewNop()}
}

func (s *FailBack) Name() string { return "failBack" }

func (s *FailBack) Do(ctx Context, cause error) (*message.RpcResponse, error) {
	if ctx.Request == nil || ctx.ServiceKey == "" {
		return nil, cause
	}
	payload, err := json.Marshal(ctx.Request)
	if err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Client.LPush(rctx, queueKey(ctx.ServiceKey), payload).Err(); err != nil {
		s.Log.Warn("failback enqueue failed", zap.String("serviceKey", ctx.ServiceKey), zap.Error(err))
		return nil, cause
	}
	return &message.RpcResponse{Message: "call queued for async retry after failure: " + cause.Error()}, nil
}

// FailBackWorker periodically drains a service's fail-back queue and
// re-attempts each queued request through Retry. Failures re-queue at the
// tail so a persistently unreachable backend does not block requests behind
// it indefinitely; it cycles through them instead.
type FailBackWorker struct {
	Client     *redis.Client
	Log        *zap.Logger
	Interval   time.Duration
	ServiceKey string
	Retry      func(req *message.RpcRequest) error
}

func NewFailBackWorker(client *redis.Client, serviceKey string, retry func(req *message.RpcRequest) error) *FailBackWorker {
	return &FailBackWorker{
		Client:     client,
		Log:        zap.NewNop(),
		Interval:   5 * time.Second,
		ServiceKey: serviceKey,
		Retry:      retry,
	}
}

// Run blocks, draining the queue on a ticker, until ctx is cancelled.
func (w *FailBackWorker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOne(ctx)
		}
	}
}

func (w *FailBackWorker) drainOne(ctx context.Context) {
	key := queueKey(w.ServiceKey)
	res, err := w.Client.RPop(ctx, key).Result()
	if err == redis.Nil {
		return
	}
	if err != nil {
		w.Log.Warn("failback dequeue failed", zap.String("serviceKey", w.ServiceKey), zap.Error(err))
		return
	}

	var req message.RpcRequest
	if err := json.Unmarshal([]byte(res), &req); err != nil {
		w.Log.Warn("failback payload corrupt, dropping", zap.Error(err))
		return
	}

	if err := w.Retry(&req); err != nil {
		w.Log.Warn("failback retry failed, requeueing", zap.String("serviceKey", w.ServiceKey), zap.Error(err))
		w.Client.LPush(ctx, key, res)
	}
}
