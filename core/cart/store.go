package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/83west/storefront/core/product"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store owns the lines of one cart. Every mutation replaces the in-memory
// state and writes the full line sequence to the Persister once. The
// in-memory state stays authoritative when a write fails.
type Store struct {
	id      string
	persist Persister
	log     logrus.FieldLogger

	mu    sync.Mutex
	lines []Line
	open  bool
}

// Open reads the cart once from p. A missing or malformed cart starts empty.
// Any other load error is returned and no store is built.
func Open(ctx context.Context, id string, p Persister, log logrus.FieldLogger) (*Store, error) {
	s, _, err := load(ctx, id, p, log)
	return s, err
}

// load is Open that also reports whether anything was stored under id.
func load(ctx context.Context, id string, p Persister, log logrus.FieldLogger) (*Store, bool, error) {
	s := newStore(id, p, log)

	lines, err := p.Load(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return s, false, nil
	case errors.Is(err, ErrMalformed):
		s.log.WithError(err).Warn("stored cart malformed, starting empty")
		return s, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("loading cart %s: %w", id, err)
	}

	s.lines = sanitize(lines)
	return s, true, nil
}

func newStore(id string, p Persister, log logrus.FieldLogger) *Store {
	return &Store{
		id:      id,
		persist: p,
		log:     log.WithField("cart_id", id),
	}
}

// sanitize drops lines that would break the store invariants: duplicate
// product ids (first one wins) and non-positive quantities.
func sanitize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	seen := make(map[int]struct{}, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if _, dup := seen[l.ProductID]; dup {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l)
	}
	return out
}

func (s *Store) ID() string { return s.id }

// AddItem adds quantity units of p, appending a snapshot line when p is not
// in the cart yet. A line whose quantity ends up at zero or below is removed.
// Quantities saturate at math.MaxInt.
func (s *Store) AddItem(ctx context.Context, p product.Product, quantity int) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Line, 0, len(s.lines)+1)
	found := false
	for _, l := range s.lines {
		if l.ProductID == p.ID {
			found = true
			l.Quantity = addQuantity(l.Quantity, quantity)
			if l.Quantity <= 0 {
				continue
			}
		}
		next = append(next, l)
	}

	if !found && quantity > 0 {
		next = append(next, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Model:     p.Model,
			Price:     p.Price,
			Images:    append([]string(nil), p.Images...),
			Quantity:  quantity,
		})
	}

	return s.replace(ctx, next)
}

// RemoveItem drops the line for productID. An absent id leaves the lines as
// they are.
func (s *Store) RemoveItem(ctx context.Context, productID int) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replace(ctx, without(s.lines, productID))
}

// SetQuantity replaces the quantity of productID's line. A quantity of zero or
// below removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID int, quantity int) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.replace(ctx, without(s.lines, productID))
	}

	next := make([]Line, len(s.lines))
	copy(next, s.lines)
	for i := range next {
		if next[i].ProductID == productID {
			next[i].Quantity = quantity
		}
	}

	return s.replace(ctx, next)
}

// Clear empties the cart. The open flag is kept.
func (s *Store) Clear(ctx context.Context) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replace(ctx, []Line{})
}

// ToggleOpen flips the visibility flag. It is not persisted.
func (s *Store) ToggleOpen() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = !s.open
	return s.view()
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subtotal(s.lines)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.lines)
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

func (s *Store) Cart() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// replace installs next and persists it. Must be called with the lock held.
func (s *Store) replace(ctx context.Context, next []Line) Cart {
	s.lines = next

	if err := s.persist.Save(ctx, s.id, cloneLines(next)); err != nil {
		s.log.WithError(err).Error("persisting cart")
	}

	return s.view()
}

func (s *Store) view() Cart {
	return Cart{
		ID:         s.id,
		Items:      cloneLines(s.lines),
		Open:       s.open,
		Subtotal:   subtotal(s.lines),
		TotalItems: totalItems(s.lines),
	}
}

func without(lines []Line, productID int) []Line {
	next := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ProductID != productID {
			next = append(next, l)
		}
	}
	return next
}
