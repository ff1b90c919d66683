package service

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(7)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 16 {
		t.Fatalf("counter = %d, want 16", counter)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		key := int64(i % 3)
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			unlock()
		}()
	}
	wg.Wait()

	if n := km.len(); n != 0 {
		t.Fatalf("lock map holds %d entries after release, want 0", n)
	}
}
