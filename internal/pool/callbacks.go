package pool

import "time"

// Callbacks contains optional callbacks for batch events. They are called
// from worker goroutines and must be safe for concurrent use.
type Callbacks struct {
	// OnStart is called once before any task runs.
	OnStart func(runID string, total int)

	// OnProgress is called when a task is picked up, with the number of
	// tasks started so far.
	OnProgress func(started, total int)

	// OnItemDone is called when a task finishes.
	OnItemDone func(index int, ok bool, elapsed time.Duration)

	// OnFinish is called once after every task has finished.
	OnFinish func(elapsed time.Duration)
}

// Chain returns Callbacks that invoke each of cbs in order.
func Chain(cbs ...Callbacks) Callbacks {
	var out Callbacks
	for _, cb := range cbs {
		out.OnStart = chain2(out.OnStart, cb.OnStart)
		out.OnProgress = chain2(out.OnProgress, cb.OnProgress)
		out.OnItemDone = chain3(out.OnItemDone, cb.OnItemDone)
		out.OnFinish = chain1(out.OnFinish, cb.OnFinish)
	}
	return out
}

func chain1[A any](a, b func(A)) func(A) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A) { a(x); b(x) }
}

func chain2[A, B any](a, b func(A, B)) func(A, B) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A, y B) { a(x, y); b(x, y) }
}

func chain3[A, B, C any](a, b func(A, B, C)) func(A, B, C) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A, y B, z C) { a(x, y, z); b(x, y, z) }
}
