package telesto

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/exepirit/telesto-go/internal/log"
)

const (
	defaultReadSize = 256
	defaultChunks   = 64
)

// StreamTransport adapts a blocking stream (serial port, TCP serial bridge,
// pipe) to Transport. A reader goroutine pumps the stream into a bounded
// channel so ReadAvailable never blocks.
type StreamTransport struct {
	Stream io.ReadWriteCloser
	Logger *slog.Logger

	writeLock sync.Mutex
	readLock  sync.Mutex
	pending   []byte

	chunks    chan []byte
	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	errLock sync.Mutex
	err     error
}

var _ Transport = &StreamTransport{}
var _ Notifier = &StreamTransport{}

// NewStreamTransport starts reading from stream.
func NewStreamTransport(stream io.ReadWriteCloser, logger *slog.Logger) *StreamTransport {
	st := &StreamTransport{
		Stream: stream,
		Logger: logger,
		chunks: make(chan []byte, defaultChunks),
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go st.pump()
	return st
}

func (st *StreamTransport) pump() {
	defer st.notify()
	defer close(st.chunks)
	logger := log.Or(st.Logger)

	buf := make([]byte, defaultReadSize)
	for {
		n, err := st.Stream.Read(buf)
		if n > 0 {
			select {
			case st.chunks <- bytes.Clone(buf[:n]):
			case <-st.closed:
				return
			}
			st.notify()
		}
		if err != nil {
			select {
			case <-st.closed:
			default:
				logger.Error("Stream read failed", "error", err)
				st.setErr(err)
			}
			return
		}
	}
}

func (st *StreamTransport) notify() {
	select {
	case st.ready <- struct{}{}:
	default:
	}
}

// Ready receives a value whenever new bytes or a read error are available.
func (st *StreamTransport) Ready() <-chan struct{} {
	return st.ready
}

func (st *StreamTransport) ReadAvailable() ([]byte, error) {
	st.readLock.Lock()
	defer st.readLock.Unlock()

	out := st.pending
	st.pending = nil
	for {
		select {
		case chunk, ok := <-st.chunks:
			if !ok {
				if len(out) > 0 {
					return out, nil
				}
				return nil, st.readErr()
			}
			out = append(out, chunk...)
		default:
			return out, nil
		}
	}
}

func (st *StreamTransport) Write(p []byte) error {
	select {
	case <-st.closed:
		return ErrClosed
	default:
	}

	st.writeLock.Lock()
	defer st.writeLock.Unlock()
	_, err := st.Stream.Write(p)
	return err
}

func (st *StreamTransport) Close() error {
	err := ErrClosed
	st.closeOnce.Do(func() {
		close(st.closed)
		err = st.Stream.Close()
	})
	return err
}

func (st *StreamTransport) setErr(err error) {
	st.errLock.Lock()
	st.err = err
	st.errLock.Unlock()
}

func (st *StreamTransport) readErr() error {
	select {
	case <-st.closed:
		return ErrClosed
	default:
	}
	st.errLock.Lock()
	defer st.errLock.Unlock()
	if st.err == nil || errors.Is(st.err, io.ErrClosedPipe) {
		return ErrClosed
	}
	return st.err
}
