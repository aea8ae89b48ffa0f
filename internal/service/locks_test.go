package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocks_SerializesSameUser(t *testing.T) {
	locks := NewKeyedLocks()

	unlock := locks.Lock("user-1")
	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("user-1")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestKeyedLocks_DifferentUsersDoNotBlock(t *testing.T) {
	locks := NewKeyedLocks()

	unlock := locks.Lock("user-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock("user-2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("user-2 blocked on user-1's lock")
	}
}

func TestKeyedLocks_ReleasesEntries(t *testing.T) {
	locks := NewKeyedLocks()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock("user-1")()
		}()
	}
	wg.Wait()

	assert.Zero(t, locks.size())
}
