package bridge

import (
	"sync"

	"github.com/wmbridge/wmbridge/internal/wm"
)

// Subscription is one consumer's view of the delta stream. Deltas arrive in
// sequence order on Deltas; when the consumer falls behind, queued deltas are
// merged into a single net delta instead of being dropped, so applying
// everything received always reconstructs the authoritative model.
type Subscription struct {
	id  uint64
	out chan wm.Delta

	mu      sync.Mutex
	pending *wm.Delta
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// Deltas returns the delta channel. It closes on Unsubscribe and on bridge
// shutdown.
func (s *Subscription) Deltas() <-chan wm.Delta {
	return s.out
}

// enqueue folds the delta into the backlog and nudges the pump. It never
// blocks, no matter how slow the consumer is.
func (s *Subscription) enqueue(d wm.Delta) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.pending == nil {
		cp := d.Clone()
		s.pending = &cp
	} else {
		s.pending.Merge(d)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump is the only writer to out. It drains the backlog whenever woken and
// exits once the subscription closes.
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			d := s.pending
			s.pending = nil
			s.mu.Unlock()
			if d == nil {
				break
			}
			select {
			case s.out <- *d:
			case <-s.done:
				return
			}
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	close(s.done)
}

// distributor fans published deltas out to every live subscription.
type distributor struct {
	queueSize int

	mu   sync.RWMutex
	subs map[uint64]*Subscription
	next uint64
}

func newDistributor(queueSize int) *distributor {
	return &distributor{
		queueSize: queueSize,
		subs:      make(map[uint64]*Subscription),
	}
}

func (d *distributor) subscribe() *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	s := &Subscription{
		id:   d.next,
		out:  make(chan wm.Delta, d.queueSize),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	d.subs[s.id] = s
	go s.pump()
	return s
}

func (d *distributor) unsubscribe(s *Subscription) {
	d.mu.Lock()
	_, ok := d.subs[s.id]
	delete(d.subs, s.id)
	d.mu.Unlock()

	if ok {
		s.close()
	}
}

func (d *distributor) publish(delta wm.Delta) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.subs {
		s.enqueue(delta)
	}
}

func (d *distributor) closeAll() {
	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[uint64]*Subscription)
	d.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

func (d *distributor) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}
