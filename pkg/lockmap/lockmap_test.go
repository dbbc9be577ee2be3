package lockmap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMap_SerializesSameKey(t *testing.T) {
	m := New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("S0001")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, m.Len())
}

func TestMap_IndependentKeys(t *testing.T) {
	m := New()
	unlockA := m.Lock("A")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("B")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on B blocked behind A")
	}
}

func TestMap_UnlockIsIdempotent(t *testing.T) {
	m := New()
	unlock := m.Lock("A")
	unlock()
	unlock()

	assert.Equal(t, 0, m.Len())
	unlock = m.Lock("A")
	unlock()
}
