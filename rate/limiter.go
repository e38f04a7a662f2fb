package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client id. Buckets idle for longer than
// Expiry are dropped by a background sweep until Stop is called.
type Limiter struct {
	Expiry   time.Duration
	Burst    int
	LimitRPS float64

	mu      sync.Mutex
	clients map[string]*clientLimiter

	done chan struct{}
	once sync.Once
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewLimiter(burst int, expiry time.Duration, limitRPS float64) *Limiter {
	lm := &Limiter{
		Expiry:   expiry,
		LimitRPS: limitRPS,
		Burst:    burst,
		clients:  make(map[string]*clientLimiter),
		done:     make(chan struct{}),
	}
	go lm.refresh(time.Minute)
	return lm
}

// Check reports whether client may proceed, consuming one token if so.
func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[id]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst)}
		l.clients[id] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter.Allow()
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) refresh(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.sweep(time.Now())
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, v := range l.clients {
		if now.Sub(v.lastAccess) > l.Expiry {
			delete(l.clients, id)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
