package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribersSeeWritesInOrder(t *testing.T) {
	s := New(0)
	var got []int
	cancel := s.Subscribe(func(v int) { got = append(got, v) })
	s.Set(1)
	s.Update(func(v int) int { return v + 10 })
	cancel()
	s.Set(99)
	assert.Equal(t, []int{1, 11}, got)
	assert.Equal(t, 99, s.Get())
}

func TestSubscriberMayReadDuringNotify(t *testing.T) {
	s := New("a")
	var seen string
	s.Subscribe(func(string) { seen = s.Get() })
	s.Set("b")
	assert.Equal(t, "b", seen)
}

func TestIsolatedInstances(t *testing.T) {
	a, b := New(1), New(1)
	a.Set(2)
	assert.Equal(t, 1, b.Get())
}

func TestConcurrentUpdates(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Get())
}
