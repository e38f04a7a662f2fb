package cart

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// fakePersister keeps encoded carts in memory and counts calls.
type fakePersister struct {
	mu      sync.Mutex
	data    map[string][]byte
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func newFakePersister() *fakePersister {
	return &fakePersister{data: make(map[string][]byte)}
}

func (f *fakePersister) Load(ctx context.Context, cartID string) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	b, ok := f.data[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(b)
}

func (f *fakePersister) Save(ctx context.Context, cartID string, lines []Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	b, err := Encode(lines)
	if err != nil {
		return err
	}
	f.data[cartID] = b
	return nil
}

func (f *fakePersister) counts() (loads, saves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads, f.saves
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
