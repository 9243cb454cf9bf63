package desaweb

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter rate-limits login attempts per IP address. Each IP gets max
// attempts per window, refilled gradually.
type LoginLimiter struct {
	mu      sync.Mutex
	clients map[string]*loginClient
	max     int
	window  time.Duration
	done    chan struct{}
	once    sync.Once
}

type loginClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		clients: make(map[string]*loginClient),
		max:     max,
		window:  window,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// cleanup drops clients idle for a full window; their limiter has refilled
// and a fresh one is equivalent.
func (l *LoginLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-l.window)
		l.mu.Lock()
		for ip, c := range l.clients {
			if c.lastSeen.Before(cutoff) {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Stop ends the cleanup goroutine.
func (l *LoginLimiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *LoginLimiter) client(ip string) *loginClient {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[ip]
	if !ok {
		c = &loginClient{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.max)), l.max)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c
}

// Check returns true if the IP has an attempt left. It does not record one;
// call Record on failure.
func (l *LoginLimiter) Check(ip string) bool {
	return l.client(ip).limiter.Tokens() >= 1
}

// Record registers a failed login attempt for the given IP.
func (l *LoginLimiter) Record(ip string) {
	l.client(ip).limiter.Allow()
}
