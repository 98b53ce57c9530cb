package telesto

import (
	"sync"
)

// Observer handles indications dispatched by the driver.
type Observer interface {
	OnIndication(ind Indication)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ind Indication)

func (f ObserverFunc) OnIndication(ind Indication) {
	f(ind)
}

// FanOutPublisher forwards every indication to all subscribers concurrently
// and returns once each of them handled it.
type FanOutPublisher struct {
	Subscribers []Observer
}

func (pub *FanOutPublisher) Subscribe(subscriber Observer) {
	pub.Subscribers = append(pub.Subscribers, subscriber)
}

func (pub *FanOutPublisher) OnIndication(ind Indication) {
	wg := sync.WaitGroup{}
	wg.Add(len(pub.Subscribers))
	for _, sub := range pub.Subscribers {
		go func() {
			defer wg.Done()
			sub.OnIndication(ind)
		}()
	}
	wg.Wait()
}

// ChanObserver queues indications in a bounded channel. When the channel is
// full the oldest queued indication is discarded so the driver never blocks.
type ChanObserver struct {
	mu      sync.Mutex
	ch      chan Indication
	dropped uint64
}

func NewChanObserver(size int) *ChanObserver {
	if size < 1 {
		size = 1
	}
	return &ChanObserver{ch: make(chan Indication, size)}
}

func (c *ChanObserver) OnIndication(ind Indication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.ch <- ind:
			return
		default:
		}
		select {
		case <-c.ch:
			c.dropped++
		default:
		}
	}
}

// C returns the channel indications are delivered on.
func (c *ChanObserver) C() <-chan Indication {
	return c.ch
}

// Dropped returns how many indications were discarded for lack of space.
func (c *ChanObserver) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
