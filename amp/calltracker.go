package amp

import "sync"

// callResult is the outcome delivered to a suspended CallRemote: exactly
// one of values/err is set.
type callResult struct {
	values map[string]any
	err    error
}

type pendingCall struct {
	command Command
	done    chan callResult
}

// callTracker assigns tags and tracks pending completions. Grounded
// directly on detect.Detector's shape (detect/detect.go): one sync.Mutex
// guarding one map, values removed once resolved. Unlike Detector's
// time-windowed eviction, entries here are removed exactly once: on
// resolution, on cancel by the waiter, or on unregister after a failed
// send. A removed tag is never revived.
type callTracker struct {
	mu        sync.Mutex
	nextTag   uint32
	pending   map[uint32]*pendingCall
	cancelled map[uint32]bool // tags this engine gave up waiting on (see DESIGN.md Open Question a)
}

func newCallTracker() *callTracker {
	return &callTracker{
		pending:   make(map[uint32]*pendingCall),
		cancelled: make(map[uint32]bool),
	}
}

// register allocates the next tag and stores a pending completion for it,
// returning the tag and the channel that will receive its result.
func (t *callTracker) register(cmd Command) (uint32, chan callResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextTag++
	tag := t.nextTag
	done := make(chan callResult, 1)
	t.pending[tag] = &pendingCall{command: cmd, done: done}
	return tag, done
}

// unregister removes a pending call without resolving it, used when local
// serialization fails before the packet was ever sent.
func (t *callTracker) unregister(tag uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, tag)
}

// cancel marks tag as abandoned by its waiter so a later answer/error for
// it is dropped rather than treated as a protocol error.
func (t *callTracker) cancel(tag uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, tag)
	t.cancelled[tag] = true
}

// resolve delivers res to tag's waiter. ok is false if tag is unknown to
// this tracker (never allocated, already resolved, or cancelled); the
// caller distinguishes "cancelled" from "unknown" via wasCancelled.
func (t *callTracker) resolve(tag uint32, res callResult) (ok, wasCancelled bool) {
	t.mu.Lock()
	pc, found := t.pending[tag]
	if found {
		delete(t.pending, tag)
	}
	wasCancelled = t.cancelled[tag]
	delete(t.cancelled, tag)
	t.mu.Unlock()

	if !found {
		return false, wasCancelled
	}
	pc.done <- res
	return true, wasCancelled
}

// commandFor returns the schema registered for tag, if any pending call
// for it still exists.
func (t *callTracker) commandFor(tag uint32) (Command, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.pending[tag]
	if !ok {
		return Command{}, false
	}
	return pc.command, true
}

// failAll resolves every pending completion with err and empties the
// table, used when the connection is lost and no further answers/errors
// can ever arrive for any outstanding call.
func (t *callTracker) failAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint32]*pendingCall)
	t.mu.Unlock()

	for _, pc := range pending {
		pc.done <- callResult{err: err}
	}
}
