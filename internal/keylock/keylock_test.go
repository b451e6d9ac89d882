package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	req := require.New(t)
	locker := New()
	counter := 0
	var wg sync.WaitGroup

	// When 100 goroutines increment under the same key
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("order-50|vendor-a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	// Then no increment is lost and no entry leaks
	req.Equal(100, counter)
	req.Equal(0, locker.tracked())
}

func TestLocker_IndependentKeys(t *testing.T) {
	req := require.New(t)
	locker := New()

	unlockA := locker.Lock("a")
	unlockB := locker.Lock("b")
	req.Equal(2, locker.tracked())

	unlockA()
	unlockB()
	req.Equal(0, locker.tracked())
}
