package memory

// Put stores raw bytes under cartID, bypassing encoding.
func (p *Persister) Put(cartID string, raw []byte) {
	p.mu.Lock()
	p.carts[cartID] = append([]byte(nil), raw...)
	p.mu.Unlock()
}
