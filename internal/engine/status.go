package engine

import (
	"fmt"
	"sync"
	"time"
)

// errorTTL is how long a surfaced error message stays visible before it
// expires on its own.
const errorTTL = 2 * time.Minute

// statusBoard is the engine's status and error surface: it counts completed
// operations and holds at most one auto-expiring error message. Callers poll
// it; nothing is pushed.
type statusBoard struct {
	mu      sync.Mutex
	clock   func() time.Time
	handled int
	errMsg  string
	errAt   time.Time
}

func newStatusBoard(clock func() time.Time) *statusBoard {
	return &statusBoard{clock: clock}
}

func (b *statusBoard) addHandled(n int) {
	b.mu.Lock()
	b.handled += n
	b.mu.Unlock()
}

func (b *statusBoard) setError(msg string) {
	b.mu.Lock()
	b.errMsg = msg
	b.errAt = b.clock()
	b.mu.Unlock()
}

// status renders the poll surface. An unexpired error message prefixes the
// synchronization counts.
func (b *statusBoard) status(pending int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := fmt.Sprintf("%d findings synchronized", b.handled)
	if pending > 0 {
		base = fmt.Sprintf("%d findings synchronized, %d remain to be synchronized", b.handled, pending)
	}

	if b.errMsg != "" {
		if b.clock().Sub(b.errAt) >= errorTTL {
			b.errMsg = ""
		} else {
			return b.errMsg + "; " + base
		}
	}
	return base
}

func (b *statusBoard) handledCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handled
}
