package telesto

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/exepirit/telesto-go/internal/log"
	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

const (
	DefaultTimeout      = 500 * time.Millisecond
	DefaultFrameTimeout = 50 * time.Millisecond
	DefaultPollInterval = 5 * time.Millisecond
)

// Clock supplies the current time to Run and Send.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ParseErrorHandler is called for every reported corrupt region of the
// inbound stream.
type ParseErrorHandler func(err *frame.ParseError)

type options struct {
	catalog      *Catalog
	codecConfig  frame.Config
	clock        Clock
	logger       *slog.Logger
	timeout      time.Duration
	frameTimeout time.Duration
	capacity     int
	pollInterval time.Duration
	onParseError ParseErrorHandler
}

type Option func(*options)

// WithCatalog replaces the Telesto opcode catalog.
func WithCatalog(c *Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithCodecConfig sets start marker, payload limit and checksum. A nil
// Opcodes set is filled from the catalog.
func WithCodecConfig(cfg frame.Config) Option {
	return func(o *options) { o.codecConfig = cfg }
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout sets the confirmation timeout used when Send gets none.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithFrameTimeout sets how long a partial frame may wait for its remaining
// bytes before it is dropped.
func WithFrameTimeout(d time.Duration) Option {
	return func(o *options) { o.frameTimeout = d }
}

func WithReassemblerCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithPollInterval sets how often Run drives the driver when the transport
// gives no readiness signal.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

func WithParseErrorHandler(h ParseErrorHandler) Option {
	return func(o *options) { o.onParseError = h }
}

// Stats is a snapshot of driver counters.
type Stats struct {
	Stream      frame.Stats
	Engine      EngineStats
	Indications uint64
}

// Driver ties a transport to the frame codec, the transaction engine and the
// indication router.
//
// Nothing happens unless Drive or Run is called: bytes are not read and
// transactions do not time out.
type Driver struct {
	transport Transport
	opts      options
	log       log.Logger

	codec  *frame.Codec
	engine *Engine
	router *Router

	// serializes Drive
	driveMu sync.Mutex

	rxMu   sync.Mutex
	reasm  *frame.Reassembler
	lastRx time.Time

	statsMu     sync.Mutex
	indications uint64
}

func NewDriver(transport Transport, opts ...Option) *Driver {
	o := options{
		catalog:      Telesto,
		codecConfig:  frame.DefaultConfig(),
		clock:        SystemClock{},
		timeout:      DefaultTimeout,
		frameTimeout: DefaultFrameTimeout,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = Telesto
	}
	if o.codecConfig.Opcodes == nil {
		o.codecConfig.Opcodes = o.catalog
	}

	logger := log.Or(o.logger)
	codec := frame.NewCodec(o.codecConfig)
	d := &Driver{
		transport: transport,
		opts:      o,
		log:       logger,
		codec:     codec,
		reasm:     frame.NewReassembler(codec, o.capacity),
		router:    NewRouter(o.catalog, logger),
	}
	d.engine = NewEngine(codec, transport, o.catalog, logger)
	return d
}

// Catalog returns the opcode catalog in use.
func (d *Driver) Catalog() *Catalog {
	return d.opts.catalog
}

// Send writes cmd and returns the handle of its transaction. A non-positive
// timeout selects the driver default. It fails with ErrBusy while another
// transaction is outstanding.
func (d *Driver) Send(cmd Command, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = d.opts.timeout
	}
	return d.engine.Send(cmd, d.opts.clock.Now(), timeout)
}

// SendContext sends cmd and waits for its confirmation payload. Some other
// goroutine must be running Run.
func (d *Driver) SendContext(ctx context.Context, cmd Command) ([]byte, error) {
	h, err := d.Send(cmd, 0)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// State returns the engine state.
func (d *Driver) State() State {
	return d.engine.State()
}

// Subscribe replaces the indication observer.
func (d *Driver) Subscribe(o Observer) {
	d.router.Subscribe(o)
}

type rxItem struct {
	frame frame.Frame
	err   *frame.ParseError
}

// Drive performs one step at time now: reads available bytes, decodes and
// routes every complete frame in arrival order, drops a partial frame that
// went stale and times out the pending transaction.
//
// Parse errors never fail Drive. A transport read error fails the pending
// transaction and is returned. Observers must not call Drive.
func (d *Driver) Drive(now time.Time) error {
	d.driveMu.Lock()
	defer d.driveMu.Unlock()

	data, readErr := d.transport.ReadAvailable()
	for _, item := range d.receive(data, now) {
		if item.err != nil {
			d.parseError(item.err)
			continue
		}
		d.process(item.frame, now)
	}

	if readErr != nil {
		terr := &TransportError{Op: "read", Err: readErr}
		if d.engine.Fail(terr) {
			d.log.Error("Pending command failed", "error", terr)
		}
		d.engine.Tick(now)
		return terr
	}

	d.engine.Tick(now)
	return nil
}

func (d *Driver) receive(data []byte, now time.Time) []rxItem {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()

	var items []rxItem
	if len(data) > 0 {
		d.lastRx = now
	}
	for len(data) > 0 {
		n := d.reasm.Feed(data)
		data = data[n:]
		items = d.drain(items)
	}
	items = d.drain(items)

	if d.opts.frameTimeout > 0 && d.reasm.Buffered() > 0 && now.Sub(d.lastRx) >= d.opts.frameTimeout {
		if err := d.reasm.Expire(); err != nil {
			items = append(items, rxItem{err: asParseError(err)})
		}
		d.lastRx = now
		items = d.drain(items)
	}
	return items
}

// drain must be called with rxMu held.
func (d *Driver) drain(items []rxItem) []rxItem {
	for f, err := range d.reasm.Frames() {
		if err != nil {
			items = append(items, rxItem{err: asParseError(err)})
			continue
		}
		items = append(items, rxItem{frame: f})
	}
	return items
}

func (d *Driver) process(f frame.Frame, now time.Time) {
	if d.engine.Deliver(f) != ClassIndication {
		return
	}
	d.statsMu.Lock()
	d.indications++
	d.statsMu.Unlock()
	d.router.Indicate(f, now)
}

func (d *Driver) parseError(perr *frame.ParseError) {
	d.log.Warn("Dropped corrupt input", "error", perr, "dropped", perr.Dropped)
	if d.opts.onParseError != nil {
		d.opts.onParseError(perr)
	}
}

func asParseError(err error) *frame.ParseError {
	var perr *frame.ParseError
	if errors.As(err, &perr) {
		return perr
	}
	return &frame.ParseError{Kind: frame.KindTruncated}
}

// Run drives the driver until ctx ends or the transport fails. It wakes up
// every poll interval and whenever the transport signals new bytes.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.pollInterval)
	defer ticker.Stop()

	var ready <-chan struct{}
	if n, ok := d.transport.(Notifier); ok {
		ready = n.Ready()
	}

	for {
		if err := d.Drive(d.opts.clock.Now()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-ready:
		}
	}
}

// Desynchronized reports whether the module answered a command with another
// command's confirmation since the last Resync.
func (d *Driver) Desynchronized() bool {
	return d.engine.Desynchronized()
}

// Resync clears the desynchronized flag and discards partially received
// bytes. The pending transaction, if any, is left alone.
func (d *Driver) Resync() {
	d.engine.ClearDesync()
	d.rxMu.Lock()
	d.reasm.Reset()
	d.lastRx = time.Time{}
	d.rxMu.Unlock()
	d.log.Info("Stream resynchronized")
}

func (d *Driver) Stats() Stats {
	d.rxMu.Lock()
	stream := d.reasm.Stats()
	d.rxMu.Unlock()

	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return Stats{
		Stream:      stream,
		Engine:      d.engine.Stats(),
		Indications: d.indications,
	}
}
