// Package memory keeps carts in process memory. Carts are stored encoded, the
// same way the durable backends store them, so a reload goes through the
// same decoding path.
package memory

import (
	"context"
	"sync"

	"github.com/83west/storefront/core/cart"
)

type Persister struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func New() *Persister {
	return &Persister{carts: make(map[string][]byte)}
}

func (p *Persister) Load(ctx context.Context, cartID string) ([]cart.Line, error) {
	p.mu.RLock()
	b, ok := p.carts[cartID]
	p.mu.RUnlock()

	if !ok {
		return nil, cart.ErrNotFound
	}
	return cart.Decode(b)
}

func (p *Persister) Save(ctx context.Context, cartID string, lines []cart.Line) error {
	b, err := cart.Encode(lines)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.carts[cartID] = b
	p.mu.Unlock()
	return nil
}
