package engine

import (
	"sync"

	"github.com/norun9/rocketshoes-cart/cart"
)

// Subscription receives every cart the engine publishes. The channel holds at
// most one pending cart: a slow reader skips intermediate carts and always
// sees the latest one next.
type Subscription struct {
	e    *Engine
	ch   chan cart.Cart
	once sync.Once
}

// Subscribe registers a subscriber. The current cart is delivered right away.
func (e *Engine) Subscribe() *Subscription {
	s := &Subscription{e: e, ch: make(chan cart.Cart, 1)}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[s] = struct{}{}
	s.ch <- e.cart
	return s
}

// C returns the channel carts are delivered on. It is closed by Close.
func (s *Subscription) C() <-chan cart.Cart { return s.ch }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.e.mu.Lock()
		defer s.e.mu.Unlock()
		delete(s.e.subs, s)
		close(s.ch)
	})
}

// publishLocked replaces each subscriber's pending cart with c. e.mu must be
// held for writing, which also keeps Close from racing a send.
func (e *Engine) publishLocked(c cart.Cart) {
	for s := range e.subs {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- c
	}
}

// Subscribers returns the number of live subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}
