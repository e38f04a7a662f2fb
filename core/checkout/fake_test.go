package checkout

import (
	"context"
	"io"
	"errors"
	"sync"

	"github.com/83west/storefront/core/cart"
	"github.com/sirupsen/logrus"
)

// fakeProvider records the requests it receives and answers with err when
// set, otherwise with a session numbered after the call.
type fakeProvider struct {
	mu   sync.Mutex
	reqs []SessionRequest
	err  error
}

func (f *fakeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return Session{}, f.err
	}
	return Session{ID: "cs_test_1", URL: "https://checkout.test/cs_test_1"}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// downPersister fails every call as an unreachable backend would.
type downPersister struct{}

var errDown = errors.New("connection refused")

func (downPersister) Load(ctx context.Context, cartID string) ([]cart.Line, error) {
	return nil, errDown
}

func (downPersister) Save(ctx context.Context, cartID string, lines []cart.Line) error {
	return errDown
}
