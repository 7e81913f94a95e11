package usecase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompanyLocksSameInstancePerCompany(t *testing.T) {
	locks := NewCompanyLocks()

	assert.Same(t, locks.Get("acme"), locks.Get("acme"))
	assert.NotSame(t, locks.Get("acme"), locks.Get("globex"))
}

func TestCompanyLocksSerializeWriters(t *testing.T) {
	locks := NewCompanyLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu := locks.Get("acme")
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}
