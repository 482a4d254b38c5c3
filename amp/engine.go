package amp

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport is the engine's byte-level collaborator. It is supplied by the
// host (see package transport); the core never opens a socket itself.
type Transport interface {
	// Write sends raw bytes preserving order relative to other Write calls.
	Write(b []byte) error
	// Close closes the underlying connection.
	Close() error
}

// state is the engine's lifecycle: Unbound -> Open -> Closed.
type state int32

const (
	stateUnbound state = iota
	stateOpen
	stateClosed
)

// Engine is the per-connection protocol state machine: it owns the
// transport, hosts the stream parser, the responder registry, and the call
// tracker, and exposes CallRemote plus the transport-facing lifecycle
// callbacks. Grounded on a relay/relayStartup connection lifecycle and a
// signal-driven shutdown sequencing shape.
type Engine struct {
	id    uuid.UUID
	log   *slog.Logger
	state atomic.Int32
	mu    sync.Mutex // guards transport and serializes writePacket; Register does not take it

	transport  Transport
	parser     *streamParser
	tracker    *callTracker
	responders map[string]Responder
	wg         sync.WaitGroup
	onEvent    func(MonitorEvent)
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMonitor registers a sink that receives a MonitorEvent for every
// notable protocol event. sink must not block.
func WithMonitor(sink func(MonitorEvent)) Option {
	return func(e *Engine) { e.onEvent = sink }
}

// NewEngine constructs an engine in the Unbound state. Responders must be
// registered (via Register) before ConnectionMade: the registry is
// conceptually immutable once a connection is bound.
func NewEngine(opts ...Option) *Engine {
	id := uuid.New()
	e := &Engine{
		id:         id,
		log:        slog.Default().With("engine", id.String()),
		tracker:    newCallTracker(),
		responders: make(map[string]Responder),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register binds handler to schema's command name. Must be called before
// ConnectionMade.
func (e *Engine) Register(r Responder) {
	e.responders[r.Command.Name] = r
}

// ConnectionMade transitions Unbound -> Open, binding transport and
// resetting the parser and buffer.
func (e *Engine) ConnectionMade(t Transport) {
	e.mu.Lock()
	e.transport = t
	e.parser = newStreamParser()
	e.mu.Unlock()
	e.state.Store(int32(stateOpen))
	e.log.Debug("connection made")
}

// ConnectionLost transitions Open -> Closed: every pending call is
// resolved with ErrConnectionLost, the pending-call table is emptied, and
// the transport handle is dropped. No operation other than observation is
// valid afterward.
func (e *Engine) ConnectionLost(cause error) {
	e.state.Store(int32(stateClosed))
	e.tracker.failAll(&ErrConnectionLost{Cause: cause})

	e.mu.Lock()
	e.transport = nil
	e.mu.Unlock()

	e.emit(MonitorEvent{Dir: DirConnectionLost, Err: errString(cause)})
	e.log.Debug("connection lost", "cause", errString(cause))
}

// Wait blocks until every spawned handler goroutine has returned, for
// orderly shutdown: the engine owns a structured-concurrency scope so
// handler tasks can be joined at shutdown instead of left to run loose.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// DataReceived feeds bytes arriving from the transport into the stream
// parser and dispatches every packet it completes.
func (e *Engine) DataReceived(data []byte) {
	if state(e.state.Load()) != stateOpen {
		return
	}
	packets, err := e.parser.Feed(data)
	for _, pkt := range packets {
		e.handlePacket(pkt)
	}
	if err != nil {
		e.log.Error("protocol framing error, closing connection", "err", err)
		e.fatal(err)
	}
}

// fatal closes the transport in response to an unrecoverable framing error.
func (e *Engine) fatal(err error) {
	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	if t != nil {
		_ = t.Close()
	}
	e.ConnectionLost(err)
}

// handlePacket classifies an inbound packet as command / answer / error
// and routes it accordingly.
func (e *Engine) handlePacket(pkt *Packet) {
	if _, ok := pkt.Get(keyCommand); ok {
		e.dispatchCommand(pkt)
		return
	}
	if raw, ok := pkt.Get(keyAnswer); ok {
		e.handleAnswer(raw, pkt)
		return
	}
	if raw, ok := pkt.Get(keyError); ok {
		e.handleError(raw, pkt)
		return
	}
	e.fatal(&ErrProtocolFraming{Reason: "packet has neither _command, _answer, nor _error"})
}

func decodeTag(raw []byte) (uint32, error) {
	n, ok := new(big.Int).SetString(string(raw), 10)
	if !ok || !n.IsUint64() || n.Uint64() > uint64(^uint32(0)) {
		return 0, &ErrProtocolFraming{Reason: "invalid tag: " + string(raw)}
	}
	return uint32(n.Uint64()), nil
}

func encodeTag(tag uint32) []byte {
	return []byte(new(big.Int).SetUint64(uint64(tag)).String())
}

// writePacket serializes pkt and writes it to the transport, under mu so
// concurrent handler goroutines and CallRemote callers don't interleave
// bytes of two packets.
func (e *Engine) writePacket(pkt *Packet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transport == nil {
		return &ErrConnectionLost{}
	}
	var buf byteBuffer
	if err := pkt.Encode(&buf); err != nil {
		return err
	}
	return e.transport.Write(buf.Bytes())
}

// byteBuffer is a minimal io.Writer sink; avoids pulling in bytes.Buffer
// just for this single append-and-read use.
type byteBuffer struct{ b []byte }

func (w *byteBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *byteBuffer) Bytes() []byte { return w.b }

// CallRemote issues cmd with args to the peer and suspends until the
// answer, a declared/undeclared remote error, or connection loss resolves
// it. The tag is registered before the packet is sent so no answer can
// race ahead of its own waiter being ready.
func (e *Engine) CallRemote(ctx context.Context, cmd Command, args map[string]any) (map[string]any, error) {
	if state(e.state.Load()) != stateOpen {
		return nil, &ErrConnectionLost{}
	}

	body, err := encodeArgs(cmd.Args, args)
	if err != nil {
		return nil, err
	}

	tag, done := e.tracker.register(cmd)

	pkt := NewPacket()
	for _, pair := range body.Pairs() {
		_ = pkt.Set(pair.Key, pair.Value)
	}
	if err := pkt.Set(keyAsk, encodeTag(tag)); err != nil {
		e.tracker.unregister(tag)
		return nil, err
	}
	if err := pkt.Set(keyCommand, []byte(cmd.Name)); err != nil {
		e.tracker.unregister(tag)
		return nil, err
	}

	start := time.Now()
	if err := e.writePacket(pkt); err != nil {
		e.tracker.unregister(tag)
		return nil, err
	}
	e.emit(MonitorEvent{Tag: tag, Command: cmd.Name, Dir: DirCallIssued, Fields: args})

	select {
	case res := <-done:
		e.observeAnswer(tag, cmd, res, time.Since(start))
		if res.err != nil {
			return nil, res.err
		}
		return res.values, nil
	case <-ctx.Done():
		e.tracker.cancel(tag)
		return nil, ctx.Err()
	}
}

func (e *Engine) observeAnswer(tag uint32, cmd Command, res callResult, dur time.Duration) {
	if res.err != nil {
		e.emit(MonitorEvent{Tag: tag, Command: cmd.Name, Dir: DirErrorReceived, Err: res.err.Error(), Duration: dur})
		return
	}
	e.emit(MonitorEvent{Tag: tag, Command: cmd.Name, Dir: DirAnswerReceived, Fields: res.values, Duration: dur})
}
