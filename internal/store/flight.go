package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// flightGroup deduplicates work per key like singleflight.Group, but runs
// the shared work under a context owned by the group. That context is
// cancelled only once every caller waiting on the key has gone, so one
// caller giving up never fails the others.
type flightGroup struct {
	group singleflight.Group

	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// abandonedError marks a result produced after every waiter left.
type abandonedError struct {
	err error
}

func (e *abandonedError) Error() string { return e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

// Do runs fn once per key across concurrent callers. Each caller's ctx
// bounds only its own wait. A caller that joins work abandoned by earlier
// callers starts it again.
func (g *flightGroup) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	for {
		call := g.join(ctx, key)
		ch := g.group.DoChan(key, func() (any, error) {
			v, err := fn(call.ctx)
			if err != nil && call.ctx.Err() != nil {
				return nil, &abandonedError{err: err}
			}
			return v, err
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			g.leave(key, call)
			return nil, ctx.Err()
		case res = <-ch:
		}
		g.leave(key, call)

		if _, ok := res.Err.(*abandonedError); ok {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return res.Val, res.Err
	}
}

func (g *flightGroup) join(ctx context.Context, key string) *flightCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]*flightCall)
	}
	call, ok := g.calls[key]
	if !ok {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &flightCall{ctx: shared, cancel: cancel}
		g.calls[key] = call
	}
	call.waiters++
	return call
}

func (g *flightGroup) leave(key string, call *flightCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if g.calls[key] == call {
		delete(g.calls, key)
	}
}
