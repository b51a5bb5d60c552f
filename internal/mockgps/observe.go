// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mockgps

import "sync"

// Subscription is a handle on a state observer. Release it when the
// observer goes away; the registry holds the callback until then.
type Subscription struct {
	reg *registry
	id  uint64
	sub *subscriber
}

// Release stops delivery. A callback already running may still finish.
// Release is safe to call more than once and from inside the callback.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.reg.remove(s.id)
	s.sub.close()
}

// registry fans states out to subscribers. Each subscriber has its own
// goroutine and an unbounded queue, so publishing never blocks on a slow
// observer and every observer sees states in publish order.
type registry struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscriber
	last State
}

func newRegistry(initial State) *registry {
	return &registry{
		subs: make(map[uint64]*subscriber),
		last: initial,
	}
}

func (r *registry) subscribe(fn func(State)) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	sub := &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	r.subs[r.next] = sub
	sub.enqueue(r.last)
	go sub.run()

	return &Subscription{reg: r, id: r.next, sub: sub}
}

func (r *registry) publish(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = st
	for _, sub := range r.subs {
		sub.enqueue(st)
	}
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

func (r *registry) closeAll() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[uint64]*subscriber)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

type subscriber struct {
	fn func(State)

	mu      sync.Mutex
	pending []State
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func (s *subscriber) enqueue(st State) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, st)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pending = nil
	close(s.done)
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.closed || len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			st := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			s.fn(st)
		}
	}
}
