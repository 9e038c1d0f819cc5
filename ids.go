package regiongrow

import (
	"fmt"
	"math"
	"sync"
)

// IDManager hands out unique segment IDs. Freed IDs are reused before new
// ones are minted. It is safe for concurrent use, so one manager can be
// shared by strategies running on different blocks of the same raster.
type IDManager struct {
	mu   sync.Mutex
	next uint64
	free []uint32
}

// NewIDManager returns a manager whose first ID is 1.
func NewIDManager() *IDManager {
	return &IDManager{next: 1}
}

// NewIDs returns n unique IDs.
func (m *IDManager) NewIDs(n int) ([]uint32, error) {
	if n < 0 {
		return nil, paramErr("n", "must not be negative, got %d", n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.next == 0 {
		m.next = 1
	}

	fromFree := min(n, len(m.free))
	fresh := n - fromFree
	if m.next+uint64(fresh)-1 > math.MaxUint32 {
		return nil, fmt.Errorf("%w: segment id space exhausted", ErrResourceExhausted)
	}

	ids := make([]uint32, 0, n)
	ids = append(ids, m.free[len(m.free)-fromFree:]...)
	m.free = m.free[:len(m.free)-fromFree]
	for i := 0; i < fresh; i++ {
		ids = append(ids, uint32(m.next))
		m.next++
	}
	return ids, nil
}

// AddFreeIDs returns ids to the manager.
func (m *IDManager) AddFreeIDs(ids []uint32) {
	if len(ids) == 0 {
		return
	}
	m.mu.Lock()
	m.free = append(m.free, ids...)
	m.mu.Unlock()
}

// AddFreeID returns a single id to the manager.
func (m *IDManager) AddFreeID(id uint32) {
	m.mu.Lock()
	m.free = append(m.free, id)
	m.mu.Unlock()
}

// FreeCount returns the number of IDs waiting for reuse.
func (m *IDManager) FreeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.free)
}
