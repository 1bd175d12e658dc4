package devapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"sync"
	"time"
)

// lockout counts failed OTP checks per (mobile, client) with a sliding window and temporary block.
type lockout struct {
	mu       sync.Mutex
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
	entries  map[string]*attempts
}

type attempts struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

func newLockout(window time.Duration, maxFails int, blockFor time.Duration, now func() time.Time) *lockout {
	return &lockout{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      now,
		entries:  map[string]*attempts{},
	}
}

// hashClient returns a stable hash of the remote host so raw addresses are not kept.
func hashClient(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	h := sha256.Sum256([]byte(host))
	return hex.EncodeToString(h[:8])
}

// allow reports whether a check is currently allowed and the retry-after otherwise.
func (l *lockout) allow(mobile, client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.entries[mobile+"|"+client]
	if !ok {
		return true, 0
	}
	if now := l.now(); a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now)
	}
	return true, 0
}

// success resets the counters.
func (l *lockout) success(mobile, client string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, mobile+"|"+client)
}

// failure records a failed check and reports whether it placed a block.
func (l *lockout) failure(mobile, client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	key := mobile + "|" + client
	a, ok := l.entries[key]
	if !ok || now.Sub(a.updatedAt) > l.window {
		a = &attempts{}
		l.entries[key] = a
	}
	a.fails++
	a.updatedAt = now
	if a.fails >= l.maxFails {
		a.fails = 0
		a.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor
	}
	return false, 0
}
