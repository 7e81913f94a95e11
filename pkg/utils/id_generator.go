package utils

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EntryReferenceGenerator produces unique, sortable journal entry references.
// ULIDs keep references lexically ordered by creation time, which keeps
// exported ledgers scannable.
type EntryReferenceGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewEntryReferenceGenerator() *EntryReferenceGenerator {
	return &EntryReferenceGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns a reference like JE-01ARZ3NDEKTSV4RRFFQ69G5FAV
func (g *EntryReferenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy)
	return fmt.Sprintf("JE-%s", id.String())
}
