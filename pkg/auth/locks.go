package auth

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 64

// accountLocks serialises writes to the same account within this process.
type accountLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *accountLocks) lock(id uuid.UUID) func() {
	h := fnv.New32a()
	h.Write(id[:])
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
