package frame

import (
	"bytes"
	"errors"
	"iter"
)

// Stats counts what the reassembler has seen since it was created.
type Stats struct {
	Frames uint64
	// Errors counts reported parse errors.
	Errors uint64
	// Suppressed counts parse errors hit while already hunting for a frame
	// boundary. They belong to a corrupt region that was reported once.
	Suppressed uint64
	Dropped    uint64
}

// Reassembler turns an arbitrarily chunked byte stream into frames. It is not
// safe for concurrent use.
//
// A corrupt region of the stream is reported as a single *ParseError: the
// first failure after a good frame is returned, the bytes that follow are
// skipped silently until the next frame decodes or the region has been
// dropped entirely.
type Reassembler struct {
	codec    *Codec
	buf      []byte
	capacity int
	hunting  bool
	stats    Stats
}

// NewReassembler creates a reassembler holding at most capacity bytes of an
// incomplete frame. A non-positive capacity selects four maximal frames.
func NewReassembler(codec *Codec, capacity int) *Reassembler {
	if capacity <= 0 {
		capacity = 4 * codec.MaxFrameLen()
	}
	return &Reassembler{
		codec:    codec,
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Feed appends bytes received from the transport without growing the buffer
// past its capacity. It returns how many bytes of p were taken; the caller
// drains frames with Next and feeds the rest afterwards.
func (r *Reassembler) Feed(p []byte) int {
	n := min(len(p), r.capacity-len(r.buf))
	if n <= 0 {
		return 0
	}
	r.buf = append(r.buf, p[:n]...)
	return n
}

// Buffered returns the number of bytes not yet consumed into a frame.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

func (r *Reassembler) Stats() Stats {
	return r.stats
}

// Next returns the next frame, a *ParseError, or ErrNeedMoreBytes when the
// buffer holds no complete frame. After a parse error Next may be called again
// to keep scanning.
func (r *Reassembler) Next() (Frame, error) {
	for {
		f, n, err := r.codec.Decode(r.buf)
		if err == nil {
			r.consume(n)
			r.hunting = false
			r.stats.Frames++
			return f, nil
		}

		if errors.Is(err, ErrNeedMoreBytes) {
			if len(r.buf) < r.capacity {
				return Frame{}, ErrNeedMoreBytes
			}
			dropped := len(r.buf)
			r.Reset()
			r.stats.Dropped += uint64(dropped)
			r.stats.Errors++
			return Frame{}, &ParseError{Kind: KindTruncated, Dropped: dropped}
		}

		var perr *ParseError
		if !errors.As(err, &perr) {
			return Frame{}, err
		}
		perr.Dropped = r.skip(perr.Kind)
		perr = r.report(perr)
		r.endRegionIfDrained()
		if perr != nil {
			return Frame{}, perr
		}
	}
}

// Expire discards the first buffered byte because the rest of its frame never
// arrived. It returns the resulting truncation error, or nil when nothing was
// buffered or the error belongs to an already reported region.
func (r *Reassembler) Expire() error {
	if len(r.buf) == 0 {
		return nil
	}
	r.consume(1)
	r.stats.Dropped++
	perr := r.report(&ParseError{Kind: KindTruncated, Dropped: 1})
	r.endRegionIfDrained()
	if perr != nil {
		return perr
	}
	return nil
}

// Frames yields every frame and parse error decodable from the bytes fed so
// far. The sequence ends when more bytes are needed; it can be ranged over
// again after the next Feed.
func (r *Reassembler) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			f, err := r.Next()
			if errors.Is(err, ErrNeedMoreBytes) {
				return
			}
			if !yield(f, err) {
				return
			}
		}
	}
}

// Reset drops all buffered bytes.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.hunting = false
}

func (r *Reassembler) report(perr *ParseError) *ParseError {
	if r.hunting {
		r.stats.Suppressed++
		return nil
	}
	r.hunting = true
	r.stats.Errors++
	return perr
}

// endRegionIfDrained closes the corrupt region once nothing of it is left, so
// garbage arriving later is reported on its own.
func (r *Reassembler) endRegionIfDrained() {
	if len(r.buf) == 0 {
		r.hunting = false
	}
}

// skip advances past the bytes that cannot start a frame and returns how
// many were dropped.
func (r *Reassembler) skip(kind Kind) int {
	n := 1
	if kind == KindMissingStart {
		n = bytes.IndexByte(r.buf, r.codec.cfg.Start)
		if n < 0 {
			n = len(r.buf)
		}
	}
	r.consume(n)
	r.stats.Dropped += uint64(n)
	return n
}

func (r *Reassembler) consume(n int) {
	r.buf = r.buf[:copy(r.buf, r.buf[n:])]
}
