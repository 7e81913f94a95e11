package utils

import (
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryReferenceFormat(t *testing.T) {
	g := NewEntryReferenceGenerator()

	ref := g.Next()
	assert.True(t, strings.HasPrefix(ref, "JE-"))
	assert.Len(t, ref, 3+26) // prefix plus ULID
}

func TestEntryReferencesUniqueAndOrdered(t *testing.T) {
	g := NewEntryReferenceGenerator()

	refs := make([]string, 1000)
	for i := range refs {
		refs[i] = g.Next()
	}

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
	assert.True(t, sort.StringsAreSorted(refs), "references must sort by creation order")
}

func TestEntryReferencesConcurrent(t *testing.T) {
	g := NewEntryReferenceGenerator()

	const workers, perWorker = 8, 200
	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ref := g.Next()
				mu.Lock()
				seen[ref] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
