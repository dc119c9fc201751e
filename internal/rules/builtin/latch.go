package builtin

import "sync"

// latch tracks which components are currently in violation so a rule fires
// once when a component enters the bad state and re-arms once it recovers.
type latch struct {
	mu     sync.Mutex
	firing map[string]bool
}

func newLatch() *latch {
	return &latch{firing: make(map[string]bool)}
}

// trip records the current state of key and reports a rising edge
func (l *latch) trip(key string, violated bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	was := l.firing[key]
	l.firing[key] = violated
	return violated && !was
}
