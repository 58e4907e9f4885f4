package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.landmarks:
			w.handleLandmark(req)
		case fn := <-w.queries:
			fn()
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() {
	if w.stopOnce.CompareAndSwap(false, true) {
		close(w.stop)
	}
}

// step advances one tick. Deferred furnace mutations land first, so every
// join snapshot and smelt check in this tick sees the same registry.
func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	tick := w.tick.Load()

	if n := w.deferred.Drain(); n > 0 {
		w.log.Debugw("applied deferred furnace updates", "tick", tick, "count", n, "furnaces", w.furnaces.Len())
	}
	for _, req := range joins {
		w.handleJoin(tick, req)
	}
	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, env := range actions {
		w.handleAction(tick, env)
	}

	w.tick.Add(1)
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run, after first handling any furnace events already
// delivered. It is intended for tests and tools that drive the world
// without a ticker; it must not be called while Run is active.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
drain:
	for {
		select {
		case req := <-w.landmarks:
			w.handleLandmark(req)
		default:
			break drain
		}
	}
	tick := w.tick.Load()
	w.step(joins, leaves, actions)
	return tick
}

// do runs fn on the world goroutine and waits for it.
func (w *World) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case w.queries <- func() { fn(); close(done) }:
	case <-w.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
