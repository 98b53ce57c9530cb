package telesto

import (
	"fmt"
	"sync"
	"time"

	"github.com/exepirit/telesto-go/internal/log"
	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

// Class is the routing decision for a decoded frame.
type Class int

const (
	// ClassIndication frames go to the subscribed observer.
	ClassIndication Class = iota
	// ClassConfirmation frames resolve the pending transaction successfully.
	ClassConfirmation
	// ClassMismatch frames are confirmations of some other command; they
	// resolve the pending transaction with a MismatchError.
	ClassMismatch
)

func (c Class) String() string {
	switch c {
	case ClassIndication:
		return "indication"
	case ClassConfirmation:
		return "confirmation"
	case ClassMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classify decides where a frame belongs given the engine state and the
// confirmation opcode the pending transaction expects.
func Classify(f frame.Frame, state State, expected frame.Opcode, catalog *Catalog) Class {
	if state != StatePending {
		return ClassIndication
	}
	if f.Opcode == expected {
		return ClassConfirmation
	}
	if catalog != nil && catalog.IsConfirmation(f.Opcode) {
		return ClassMismatch
	}
	return ClassIndication
}

// Tag qualifies an indication.
type Tag int

const (
	// TagUnsolicited marks a frame outside the catalog's event set.
	TagUnsolicited Tag = iota
	// TagEvent marks a regular module event.
	TagEvent
	// TagUnmatched marks a confirmation no transaction was waiting for: it
	// arrived after a timeout or cancellation, or duplicates one that
	// already resolved.
	TagUnmatched
)

func (t Tag) String() string {
	switch t {
	case TagUnsolicited:
		return "unsolicited"
	case TagEvent:
		return "event"
	case TagUnmatched:
		return "unmatched"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// TagOf tags a frame classified as an indication.
func TagOf(op frame.Opcode, catalog *Catalog) Tag {
	switch {
	case catalog == nil:
		return TagUnsolicited
	case catalog.IsEvent(op):
		return TagEvent
	case catalog.IsConfirmation(op):
		return TagUnmatched
	default:
		return TagUnsolicited
	}
}

// Indication is an unsolicited frame handed to the observer. The driver does
// not keep it after dispatch.
type Indication struct {
	Frame      frame.Frame
	Tag        Tag
	Name       string
	ReceivedAt time.Time
}

// Router hands indications to the subscribed observer in arrival order.
type Router struct {
	mu       sync.RWMutex
	observer Observer
	catalog  *Catalog
	log      log.Logger
}

func NewRouter(catalog *Catalog, logger log.Logger) *Router {
	if logger == nil {
		logger = log.NOOPLogger{}
	}
	if catalog == nil {
		catalog = Telesto
	}
	return &Router{catalog: catalog, log: logger}
}

// Subscribe replaces the observer. Frames classified afterwards go to o; a
// nil observer discards indications.
func (r *Router) Subscribe(o Observer) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

// Indicate wraps f into an indication and dispatches it.
func (r *Router) Indicate(f frame.Frame, now time.Time) Indication {
	ind := Indication{
		Frame:      f,
		Tag:        TagOf(f.Opcode, r.catalog),
		Name:       r.catalog.Name(f.Opcode),
		ReceivedAt: now,
	}
	if ind.Tag == TagUnmatched {
		r.log.Warn("Unmatched confirmation", "opcode", ind.Name, "payload", fmt.Sprintf("% X", f.Payload))
	}
	r.Dispatch(ind)
	return ind
}

// Dispatch calls the observer once for ind. It must not be called with
// driver locks held, observers are allowed to send commands.
func (r *Router) Dispatch(ind Indication) {
	r.mu.RLock()
	o := r.observer
	r.mu.RUnlock()

	if o == nil {
		r.log.Debug("Indication dropped, no observer", "opcode", ind.Name)
		return
	}
	o.OnIndication(ind)
}
