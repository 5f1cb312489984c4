package syncer

import (
	"errors"
	"sync"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// Guard admits one run at a time. The zero value is ready to use.
type Guard struct {
	mu      sync.Mutex
	running bool
}

// TryAcquire reports whether the caller now owns the guard. Owners must call
// Release, normally via defer.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *Guard) Release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

func (g *Guard) IsSyncing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
