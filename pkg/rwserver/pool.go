// Package rwserver implements the RWhois TCP listener (spec C8): the accept
// loop, banner, line reader, and per-connection session dispatch to the
// directive and query layers.
package rwserver

import (
	"context"
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// ConnPool bounds the number of concurrently active RWhois sessions and
// optionally throttles how fast new connections are admitted. It adapts
// wingedpig/iporg's pkg/util/workers.Pool from a batch task pool (one
// goroutine per Task, then done) into a long-lived per-connection gate: a
// worker doesn't return until the connection's whole session loop exits,
// rather than until a single function call returns. The exponential-backoff
// retry helpers that pool carried have no role here (the server issues no
// outbound calls to retry) and were dropped.
type ConnPool struct {
	limiter   *rate.Limiter
	semaphore chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// Config configures a ConnPool.
type Config struct {
	MaxConns  int     // concurrent session ceiling (0 = unlimited)
	AcceptQPS float64 // new-connection admission rate (0 = unlimited)
	Burst     int     // burst size for AcceptQPS
}

// NewConnPool constructs a ConnPool bound to ctx; canceling ctx stops
// admitting new connections and unblocks any Handle call waiting on the
// limiter or semaphore.
func NewConnPool(ctx context.Context, cfg Config) *ConnPool {
	poolCtx, cancel := context.WithCancel(ctx)

	var limiter *rate.Limiter
	if cfg.AcceptQPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.AcceptQPS), burst)
	}

	var sem chan struct{}
	if cfg.MaxConns > 0 {
		sem = make(chan struct{}, cfg.MaxConns)
	}

	return &ConnPool{limiter: limiter, semaphore: sem, ctx: poolCtx, cancel: cancel}
}

// Handle admits conn and runs serve in its own goroutine once the rate
// limiter and connection-count semaphore both allow it; serve receives the
// pool's context so a long-held session is asked to unwind on Stop. Handle
// does not block the caller's accept loop waiting for a semaphore slot — if
// none is available it spawns a goroutine that waits, so the listener can
// keep calling Accept.
func (p *ConnPool) Handle(conn net.Conn, serve func(context.Context, net.Conn)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.semaphore != nil {
			select {
			case p.semaphore <- struct{}{}:
				defer func() { <-p.semaphore }()
			case <-p.ctx.Done():
				conn.Close()
				return
			}
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(p.ctx); err != nil {
				conn.Close()
				return
			}
		}

		serve(p.ctx, conn)
	}()
}

// Stop cancels the pool's context and waits for every in-flight session to
// return from serve.
func (p *ConnPool) Stop() {
	p.cancel()
	p.wg.Wait()
}
