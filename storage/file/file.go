// Package file stores each cart as a JSON document in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/83west/storefront/core/cart"
)

type Persister struct {
	dir string
}

// New returns a Persister rooted at dir, creating the directory if needed.
func New(dir string) (*Persister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cart directory: %w", err)
	}
	return &Persister{dir: dir}, nil
}

func (p *Persister) path(cartID string) (string, error) {
	if cartID == "" || filepath.Base(cartID) != cartID || cartID == "." || cartID == ".." {
		return "", fmt.Errorf("invalid cart id %q", cartID)
	}
	return filepath.Join(p.dir, cart.StorageKey+"-"+cartID+".json"), nil
}

func (p *Persister) Load(ctx context.Context, cartID string) ([]cart.Line, error) {
	path, err := p.path(cartID)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cart[%s]: %w", cartID, err)
	}

	return cart.Decode(b)
}

// Save replaces the cart document atomically: it writes a temporary file
// next to it and renames it over the old one.
func (p *Persister) Save(ctx context.Context, cartID string, lines []cart.Line) error {
	path, err := p.path(cartID)
	if err != nil {
		return err
	}

	b, err := cart.Encode(lines)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(p.dir, ".cart-*")
	if err != nil {
		return fmt.Errorf("creating temp file for cart[%s]: %w", cartID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cart[%s]: %w", cartID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cart[%s]: %w", cartID, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing cart[%s]: %w", cartID, err)
	}
	return nil
}
