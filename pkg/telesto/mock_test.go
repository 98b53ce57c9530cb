package telesto

import (
	"sync"
	"testing"
	"time"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

// mockTransport records written frames and serves injected bytes.
type mockTransport struct {
	mu       sync.Mutex
	written  [][]byte
	inbound  []byte
	readErr  error
	writeErr error
	// onWrite runs after a successful write, outside the mock's lock.
	onWrite func(p []byte)
}

func (m *mockTransport) Write(p []byte) error {
	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return err
	}
	m.written = append(m.written, append([]byte(nil), p...))
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (m *mockTransport) ReadAvailable() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, err := m.inbound, m.readErr
	m.inbound, m.readErr = nil, nil
	return out, err
}

// Inject queues bytes for the next ReadAvailable.
func (m *mockTransport) Inject(p ...byte) {
	m.mu.Lock()
	m.inbound = append(m.inbound, p...)
	m.mu.Unlock()
}

func (m *mockTransport) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testCatalog is a minimal protocol: one request, its confirmation, a
// confirmation of some other command and one event.
var testCatalog = MustCatalog(
	OpcodeDef{Opcode: 0x01, Kind: KindRequest, Name: "PING_REQ"},
	OpcodeDef{Opcode: 0x81, Kind: KindConfirmation, Name: "PING_CNF"},
	OpcodeDef{Opcode: 0x7F, Kind: KindConfirmation, Name: "OTHER_CNF"},
	OpcodeDef{Opcode: 0x90, Kind: KindEvent, Name: "EVENT_IND"},
)

var pingCommand = Command{Name: "PING_REQ", Request: 0x01, Response: 0x81}

// recorder collects indications.
type recorder struct {
	mu   sync.Mutex
	inds []Indication
}

func (r *recorder) OnIndication(ind Indication) {
	r.mu.Lock()
	r.inds = append(r.inds, ind)
	r.mu.Unlock()
}

func (r *recorder) Indications() []Indication {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Indication(nil), r.inds...)
}

type testEnv struct {
	transport *mockTransport
	clock     *manualClock
	driver    *Driver
	observed  *recorder
	parseErrs []*frame.ParseError
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		transport: &mockTransport{},
		clock:     &manualClock{now: t0},
		observed:  &recorder{},
	}
	opts = append([]Option{
		WithCatalog(testCatalog),
		WithClock(env.clock),
		WithParseErrorHandler(func(err *frame.ParseError) {
			env.parseErrs = append(env.parseErrs, err)
		}),
	}, opts...)
	env.driver = NewDriver(env.transport, opts...)
	env.driver.Subscribe(env.observed)
	return env
}

// encode builds a valid frame with the default codec settings.
func encode(t *testing.T, op frame.Opcode, payload ...byte) []byte {
	t.Helper()
	data, err := frame.NewCodec(frame.DefaultConfig()).Encode(op, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", op, err)
	}
	return data
}

// drive runs Drive at t0+offset and fails the test on error.
func (env *testEnv) drive(t *testing.T, offset time.Duration) {
	t.Helper()
	env.clock.Set(t0.Add(offset))
	if err := env.driver.Drive(t0.Add(offset)); err != nil {
		t.Fatalf("Drive(+%s) error: %v", offset, err)
	}
}
