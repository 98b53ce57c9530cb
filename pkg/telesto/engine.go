package telesto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/exepirit/telesto-go/internal/log"
	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

// State of a transaction, and of the engine as a whole.
type State int

const (
	StateIdle State = iota
	StatePending
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transaction is the lifecycle of one command.
type Transaction struct {
	Command  Command
	IssuedAt time.Time
	Deadline time.Time
	State    State
}

// Result is the outcome of a transaction. Frame is the confirmation for
// successful and mismatched transactions.
type Result struct {
	Frame frame.Frame
	Err   error
}

// Payload returns the confirmation payload.
func (r Result) Payload() []byte {
	return r.Frame.Payload
}

// Sink accepts encoded frames.
type Sink interface {
	Write(p []byte) error
}

// EngineStats counts transaction outcomes.
type EngineStats struct {
	Sent       uint64
	Confirmed  uint64
	Mismatched uint64
	TimedOut   uint64
	Cancelled  uint64
	Failed     uint64
}

// Engine enforces the single outstanding command of the half-duplex
// protocol. A transaction moves Idle -> Pending -> Resolved and back to Idle
// only once its result has been consumed through the Handle.
//
// Commands are never queued and never retried: a second Send while a
// transaction exists fails with ErrBusy.
type Engine struct {
	mu      sync.Mutex
	codec   *frame.Codec
	sink    Sink
	catalog *Catalog
	log     log.Logger

	current *Handle
	desync  bool
	stats   EngineStats
}

func NewEngine(codec *frame.Codec, sink Sink, catalog *Catalog, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NOOPLogger{}
	}
	if catalog == nil {
		catalog = Telesto
	}
	return &Engine{
		codec:   codec,
		sink:    sink,
		catalog: catalog,
		log:     logger,
	}
}

// State returns StateIdle when no transaction exists, otherwise the state of
// the current one.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return StateIdle
	}
	return e.current.tx.State
}

// Current returns a snapshot of the transaction that has not been consumed yet.
func (e *Engine) Current() (Transaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Transaction{}, false
	}
	return e.current.tx, true
}

// Send encodes cmd, writes it to the sink and starts a transaction with the
// given deadline. Nothing is written when the engine is busy.
func (e *Engine) Send(cmd Command, now time.Time, timeout time.Duration) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		if e.current.tx.State == StateResolved {
			return nil, ErrUnconsumed
		}
		return nil, ErrBusy
	}

	data, err := e.codec.Encode(cmd.Request, cmd.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if err := e.sink.Write(data); err != nil {
		return nil, &TransportError{Op: "write", Err: err}
	}

	cmd.Payload = bytes.Clone(cmd.Payload)
	h := &Handle{
		engine: e,
		done:   make(chan struct{}),
		tx: Transaction{
			Command:  cmd,
			IssuedAt: now,
			Deadline: now.Add(timeout),
			State:    StatePending,
		},
	}
	e.current = h
	e.stats.Sent++
	e.log.Debug("Command sent", "command", cmd.Name, "frame", fmt.Sprintf("% X", data), "timeout", timeout)
	return h, nil
}

// Deliver offers a decoded frame to the pending transaction. Matching and
// mismatching confirmations resolve it; the returned class tells the caller
// whether the frame must be routed as an indication.
func (e *Engine) Deliver(f frame.Frame) Class {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, expected := StateIdle, frame.Opcode(0)
	if e.current != nil {
		state = e.current.tx.State
		expected = e.current.tx.Command.Response
	}

	class := Classify(f, state, expected, e.catalog)
	switch class {
	case ClassConfirmation:
		e.stats.Confirmed++
		e.resolve(Result{Frame: f})
	case ClassMismatch:
		cmd := e.current.tx.Command
		e.stats.Mismatched++
		e.desync = true
		e.log.Warn("Confirmation does not match command", "command", cmd.Name,
			"expected", cmd.Response, "got", e.catalog.Name(f.Opcode))
		e.resolve(Result{Frame: f, Err: &MismatchError{Command: cmd.Name, Expected: cmd.Response, Got: f.Opcode}})
	}
	return class
}

// Tick resolves the pending transaction with ErrTimeout once now reaches its
// deadline. It reports whether a timeout happened.
func (e *Engine) Tick(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.tx.State != StatePending || now.Before(e.current.tx.Deadline) {
		return false
	}
	cmd := e.current.tx.Command
	e.stats.TimedOut++
	e.log.Warn("Command timed out", "command", cmd.Name, "waited", now.Sub(e.current.tx.IssuedAt))
	e.resolve(Result{Err: fmt.Errorf("%s: %w", cmd.Name, ErrTimeout)})
	return true
}

// Fail resolves the pending transaction with err, typically a transport
// failure.
func (e *Engine) Fail(err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.tx.State != StatePending {
		return false
	}
	e.stats.Failed++
	e.resolve(Result{Err: err})
	return true
}

// Desynchronized reports whether a mismatching confirmation was seen since
// the last ClearDesync.
func (e *Engine) Desynchronized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desync
}

func (e *Engine) ClearDesync() {
	e.mu.Lock()
	e.desync = false
	e.mu.Unlock()
}

func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) cancel(h *Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != h || h.tx.State != StatePending {
		return false
	}
	e.stats.Cancelled++
	e.log.Debug("Command cancelled", "command", h.tx.Command.Name)
	e.resolve(Result{Err: fmt.Errorf("%s: %w", h.tx.Command.Name, ErrCancelled)})
	return true
}

func (e *Engine) consume(h *Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == h && h.tx.State == StateResolved {
		e.current = nil
	}
}

// resolve must be called with e.mu held and a pending transaction.
func (e *Engine) resolve(res Result) {
	h := e.current
	h.res = res
	h.tx.State = StateResolved
	close(h.done)
}

// Handle is the caller's reference to a transaction.
type Handle struct {
	engine *Engine
	done   chan struct{}

	// guarded by engine.mu until done is closed
	tx  Transaction
	res Result
}

// Done is closed when the transaction resolves.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Transaction returns a snapshot of the transaction.
func (h *Handle) Transaction() Transaction {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	return h.tx
}

// Result returns the outcome if the transaction has resolved. Reading a
// result consumes it and frees the engine for the next command.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
	default:
		return Result{}, false
	}
	h.engine.consume(h)
	return h.res, true
}

// Cancel resolves a pending transaction with ErrCancelled. A confirmation
// that arrives later is routed as an unmatched indication.
func (h *Handle) Cancel() bool {
	return h.engine.cancel(h)
}

// Wait blocks until the transaction resolves and returns the confirmation
// payload. If ctx ends first the transaction is cancelled. Someone must keep
// driving the Driver for Wait to return before ctx ends.
func (h *Handle) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.Cancel()
		<-h.done
	}

	res, _ := h.Result()
	if res.Err != nil {
		if errors.Is(res.Err, ErrCancelled) && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", res.Err, ctx.Err())
		}
		return nil, res.Err
	}
	return res.Payload(), nil
}
