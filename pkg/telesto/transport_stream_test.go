package telesto

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// readUntil collects bytes from st until n arrived or an error occurs.
func readUntil(t *testing.T, st *StreamTransport, n int) ([]byte, error) {
	t.Helper()
	var got []byte
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		data, err := st.ReadAvailable()
		got = append(got, data...)
		if err != nil {
			return got, err
		}
		if len(got) >= n {
			break
		}
		select {
		case <-st.Ready():
		case <-deadline:
			t.Fatalf("timed out after %d of %d bytes", len(got), n)
		}
	}
	return got, nil
}

func TestStreamTransportReadWrite(t *testing.T) {
	local, remote := net.Pipe()
	st := NewStreamTransport(local, nil)
	defer st.Close()

	if data, err := st.ReadAvailable(); err != nil || len(data) != 0 {
		t.Fatalf("ReadAvailable() on idle stream = % X, %v", data, err)
	}

	go func() {
		remote.Write([]byte{0x02, 0x90})
		remote.Write([]byte{0x01, 0x07, 0x94})
	}()
	got, err := readUntil(t, st, 5)
	if err != nil {
		t.Fatalf("ReadAvailable() error: %v", err)
	}
	if diff := cmp.Diff([]byte{0x02, 0x90, 0x01, 0x07, 0x94}, got); diff != "" {
		t.Errorf("read (-want +got):\n%s", diff)
	}

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := io.ReadFull(remote, buf)
		received <- buf[:n]
	}()
	if err := st.Write([]byte{0x02, 0x05, 0x00, 0x07}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if diff := cmp.Diff([]byte{0x02, 0x05, 0x00, 0x07}, <-received); diff != "" {
		t.Errorf("written (-want +got):\n%s", diff)
	}
}

func TestStreamTransportRemoteClosed(t *testing.T) {
	local, remote := net.Pipe()
	st := NewStreamTransport(local, nil)
	defer st.Close()

	remote.Close()
	_, err := readUntil(t, st, 1)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("ReadAvailable() error = %v, want EOF", err)
	}
}

func TestStreamTransportClose(t *testing.T) {
	local, _ := net.Pipe()
	st := NewStreamTransport(local, nil)

	if err := st.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := st.Write([]byte{0x00}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close error = %v, want ErrClosed", err)
	}
	_, err := readUntil(t, st, 1)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("ReadAvailable() after Close error = %v, want ErrClosed", err)
	}
}
