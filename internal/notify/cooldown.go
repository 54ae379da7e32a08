package notify

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two alerts for one sender.
const DefaultCooldown = 15 * time.Minute

// CooldownLedger tracks the last alert attempt per sender. State is
// in-process only: it does not survive a restart and is not shared
// across instances, which is acceptable for a single long-lived process.
type CooldownLedger struct {
	mu       sync.Mutex
	window   time.Duration
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewCooldownLedger creates a ledger with the given cooldown window.
func NewCooldownLedger(window time.Duration) *CooldownLedger {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &CooldownLedger{
		window:   window,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Begin reports whether an alert for sender may go out now and, if so,
// records the attempt. Check and record happen under one lock, so two
// near-simultaneous dispatches for the same sender cannot both pass.
// The timestamp is taken at send attempt rather than confirmed delivery,
// which keeps a failing transport from being hammered by retries.
func (l *CooldownLedger) Begin(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastSent[sender]; ok && now.Sub(last) < l.window {
		return false
	}
	l.lastSent[sender] = now
	return true
}
