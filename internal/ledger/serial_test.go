package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSerial(t *testing.T) {
	assert.Equal(t, 1, NextSerial(0))
	assert.Equal(t, 8, NextSerial(7))
	assert.Equal(t, 1, NextSerial(-3))
}

func TestRenumber(t *testing.T) {
	t.Run("delete middle shifts later entries down", func(t *testing.T) {
		// 1..5 with serial 3 removed
		entries := []Entry{{ID: 10, Serial: 1}, {ID: 11, Serial: 2}, {ID: 13, Serial: 4}, {ID: 14, Serial: 5}}
		changes := Renumber(entries)
		assert.Equal(t, []Change{{ID: 13, From: 4, To: 3}, {ID: 14, From: 5, To: 4}}, changes)
	})

	t.Run("delete highest changes nothing", func(t *testing.T) {
		entries := []Entry{{ID: 1, Serial: 1}, {ID: 2, Serial: 2}}
		assert.Empty(t, Renumber(entries))
	})

	t.Run("delete first", func(t *testing.T) {
		entries := []Entry{{ID: 2, Serial: 2}, {ID: 3, Serial: 3}}
		assert.Equal(t, []Change{{ID: 2, From: 2, To: 1}, {ID: 3, From: 3, To: 2}}, Renumber(entries))
	})

	t.Run("duplicates ordered by id", func(t *testing.T) {
		entries := []Entry{{ID: 9, Serial: 2}, {ID: 4, Serial: 2}, {ID: 1, Serial: 1}}
		changes := Renumber(entries)
		assert.Equal(t, []Change{{ID: 9, From: 2, To: 3}}, changes)
	})

	t.Run("unsorted input keeps relative order", func(t *testing.T) {
		entries := []Entry{{ID: 5, Serial: 7}, {ID: 6, Serial: 3}, {ID: 7, Serial: 10}}
		changes := Renumber(entries)
		assert.Equal(t, []Change{
			{ID: 6, From: 3, To: 1},
			{ID: 5, From: 7, To: 2},
			{ID: 7, From: 10, To: 3},
		}, changes)
		// input untouched
		assert.Equal(t, 7, entries[0].Serial)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Renumber(nil))
	})
}

func TestVerify(t *testing.T) {
	assert.True(t, Verify([]int{3, 1, 2}).Contiguous())
	assert.True(t, Verify(nil).Contiguous())

	r := Verify([]int{1, 3, 3, 5})
	assert.False(t, r.Contiguous())
	assert.Equal(t, []int{2, 4}, r.Gaps)
	assert.Equal(t, []int{3}, r.Duplicates)
	assert.Equal(t, []int{5}, r.OutOfRange)
	assert.Contains(t, r.String(), "gaps=[2 4]")

	fixed := []Entry{{ID: 1, Serial: 1}, {ID: 2, Serial: 3}, {ID: 3, Serial: 3}, {ID: 4, Serial: 5}}
	for _, c := range Renumber(fixed) {
		for i := range fixed {
			if fixed[i].ID == c.ID {
				fixed[i].Serial = c.To
			}
		}
	}
	assert.True(t, VerifyEntries(fixed).Contiguous())
}

func TestScopeLocks(t *testing.T) {
	locks := NewScopeLocks()
	scope := Scope{CustomerID: 1, ProjectID: 2}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, _ := locks.Lock(scope)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.Len())
}

func TestScopeLocks_IndependentScopes(t *testing.T) {
	locks := NewScopeLocks()
	unlockA, _ := locks.Lock(Scope{CustomerID: 1, ProjectID: 1})
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, _ := locks.Lock(Scope{CustomerID: 1, ProjectID: 2})
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another scope blocked")
	}
	require.Equal(t, 1, locks.Len())

	unlockA()
	unlockA()
	assert.Equal(t, 0, locks.Len())
}
