package executable

import (
	"errors"
	"slices"
	"sync"
)

// ProcessTable tracks every process spawned through it that hasn't been reaped yet.
// Shutdown kills and reaps whatever is left, so no child outlives its owner unreaped.
type ProcessTable struct {
	mu       sync.Mutex
	live     map[int]*ProcessHandle
	shutdown bool
}

var (
	defaultTable     *ProcessTable
	defaultTableOnce sync.Once
)

// NewProcessTable returns an empty table
func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		live: make(map[int]*ProcessHandle),
	}
}

// DefaultProcessTable returns the process-wide table, creating it on first use
// (the first spawn through a Spawner without its own table).
func DefaultProcessTable() *ProcessTable {
	defaultTableOnce.Do(func() {
		defaultTable = NewProcessTable()
	})
	return defaultTable
}

func (t *ProcessTable) add(h *ProcessHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown {
		return ErrTableShutdown
	}

	t.live[h.pid] = h
	return nil
}

func (t *ProcessTable) remove(h *ProcessHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live[h.pid] == h {
		delete(t.live, h.pid)
	}
}

// Live returns the pids of processes that haven't been reaped, in ascending order
func (t *ProcessTable) Live() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pids := make([]int, 0, len(t.live))
	for pid := range t.live {
		pids = append(pids, pid)
	}
	slices.Sort(pids)

	return pids
}

// Len returns the number of processes that haven't been reaped
func (t *ProcessTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Shutdown kills and reaps every live process and rejects further spawns.
// Handles already being waited on elsewhere are killed but left to their waiter.
func (t *ProcessTable) Shutdown() error {
	t.mu.Lock()
	t.shutdown = true
	handles := make([]*ProcessHandle, 0, len(t.live))
	for _, h := range t.live {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Kill(); err != nil {
			errs = append(errs, err)
		}

		if _, err := h.Wait(); err != nil && !errors.Is(err, ErrAlreadyWaited) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
