package telesto

import (
	"testing"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

func TestFanOutPublisher(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	pub := &FanOutPublisher{}
	pub.Subscribe(a)
	pub.Subscribe(b)

	pub.OnIndication(Indication{Frame: frame.Frame{Opcode: 0x90}})
	pub.OnIndication(Indication{Frame: frame.Frame{Opcode: 0x85}})

	for name, r := range map[string]*recorder{"a": a, "b": b} {
		if n := len(r.Indications()); n != 2 {
			t.Errorf("subscriber %s got %d indications, want 2", name, n)
		}
	}
}

func TestChanObserverDropsOldest(t *testing.T) {
	obs := NewChanObserver(2)
	for op := range frame.Opcode(4) {
		obs.OnIndication(Indication{Frame: frame.Frame{Opcode: op}})
	}

	if got := obs.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	for _, want := range []frame.Opcode{2, 3} {
		if got := (<-obs.C()).Frame.Opcode; got != want {
			t.Errorf("received %s, want %s", got, want)
		}
	}
}
