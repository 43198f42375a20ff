// Package client implements the mini-rpc consumer-side pipeline:
// discover → load-balanced select → retry(transport call) → on
// exhaustion, tolerate, keyed on explicit serviceName/methodName fields
// rather than a combined "Service.Method" string.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mini-rpc/codec"
	"mini-rpc/errs"
	"mini-rpc/loadbalance"
	"mini-rpc/message"
	"mini-rpc/registry"
	"mini-rpc/retry"
	"mini-rpc/tolerance"
	"mini-rpc/transport"
)

// Proxy is the consumer-side handle a typed method-call interceptor uses
// to perform one RPC. One Proxy is normally shared across many calls; it
// owns the transport pool backing every endpoint it has dialed.
type Proxy struct {
	Registry    registry.RemoteRegistry
	Balancer    loadbalance.Balancer
	Retry       retry.Strategy
	Tolerant    tolerance.Strategy
	CodecID     codec.ID
	CallTimeout time.Duration

	pool *transport.Pool
	log  *zap.Logger
}

// NewProxy wires the four pluggable concerns (registry, load balancer,
// retry, tolerance) into a usable client. CallTimeout defaults to 5s.
func NewProxy(reg registry.RemoteRegistry, bal loadbalance.Balancer, retryStrategy retry.Strategy, tolerantStrategy tolerance.Strategy, codecID codec.ID) *Proxy {
	return &Proxy{
		Registry:    reg,
		Balancer:    bal,
		Retry:       retryStrategy,
		Tolerant:    tolerantStrategy,
		CodecID:     codecID,
		CallTimeout: 5 * time.Second,
		pool:        transport.NewPool(codecID),
		log:         zap.NewNop(),
	}
}

func (p *Proxy) SetLogger(log *zap.Logger) { p.log = log }

// Invoke performs one remote call: discover(serviceKey) → select an
// endpoint → retry the transport call → on exhaustion, tolerate. It
// returns the response's Data on success. Every attempt re-runs discover
// and select instead of fixing the endpoint up front — Discover is
// cache-backed so this is cheap, and it means a retry after the registry's
// watch has invalidated the cache picks up a fresh candidate set rather
// than hammering an endpoint already known to have failed.
func (p *Proxy) Invoke(serviceName, methodName string, parameterTypes []string, args []any, serviceVersion string) (any, error) {
	serviceKey := message.ServiceMetaInfo{ServiceName: serviceName, ServiceVersion: serviceVersion}.ServiceKey()

	req := &message.RpcRequest{
		ServiceName:    serviceName,
		MethodName:     methodName,
		ParameterTypes: parameterTypes,
		Args:           args,
		ServiceVersion: serviceVersion,
	}
	reqCtx := loadbalance.RequestContext{"methodName": methodName}

	var lastCandidates []message.ServiceMetaInfo
	var lastSelected *message.ServiceMetaInfo

	attempt := func(candidate message.ServiceMetaInfo) (*message.RpcResponse, error) {
		addr := fmt.Sprintf("%s:%d", candidate.ServiceHost, candidate.ServicePort)
		t, err := p.pool.Get(addr)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.CallTimeout)
		defer cancel()
		resp, err := t.Call(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Exception != nil {
			// A well-formed response carrying an application-level
			// exception is still a transport success, but it must be
			// treated as a failure here so retry/tolerance can act on
			// it — otherwise a provider-side error would bypass both.
			return nil, &errs.DispatchError{
				ServiceName: serviceName,
				MethodName:  methodName,
				Err:         errors.New(resp.Exception.Message),
			}
		}
		return resp, nil
	}

	call := func() (*message.RpcResponse, error) {
		candidates, err := p.Registry.Discover(serviceKey)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, &errs.NoEndpoints{ServiceKey: serviceKey}
		}
		selected, err := p.Balancer.Select(reqCtx, candidates)
		if err != nil {
			return nil, err
		}
		if selected == nil {
			return nil, &errs.NoEndpoints{ServiceKey: serviceKey}
		}
		lastCandidates, lastSelected = candidates, selected
		return attempt(*selected)
	}

	resp, err := p.Retry.Do(call)
	if err != nil {
		resp, err = p.Tolerant.Do(tolerance.Context{
			Request:             req,
			ServiceKey:          serviceKey,
			RemainingCandidates: without(lastCandidates, lastSelected),
			Attempt:             attempt,
		}, err)
		if err != nil {
			return nil, err
		}
	}

	return resp.Data, nil
}

// Close releases every pooled transport connection.
func (p *Proxy) Close() error { return p.pool.Close() }

func without(candidates []message.ServiceMetaInfo, selected *message.ServiceMetaInfo) []message.ServiceMetaInfo {
	if selected == nil {
		return candidates
	}
	remaining := make([]message.ServiceMetaInfo, 0, len(candidates))
	for _, c := range candidates {
		if c.ServiceHost == selected.ServiceHost && c.ServicePort == selected.ServicePort {
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining
}
