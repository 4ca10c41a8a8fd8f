package bloom

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExistenceFilter(t *testing.T) {
	t.Run("AddedIDsAreFound", func(t *testing.T) {
		f := NewExistenceFilter(1000, 0.01)

		for id := uint64(1); id <= 100; id++ {
			f.Add(id)
		}

		for id := uint64(1); id <= 100; id++ {
			assert.True(t, f.MayExist(id))
		}
	})

	t.Run("UnknownIDsMostlyRejected", func(t *testing.T) {
		f := NewExistenceFilter(1000, 0.01)

		for id := uint64(1); id <= 100; id++ {
			f.Add(id)
		}

		falsePositives := 0
		for id := uint64(10_000); id < 11_000; id++ {
			if f.MayExist(id) {
				falsePositives++
			}
		}
		assert.Less(t, falsePositives, 50, "false positive rate far above configured bound")
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		f := NewExistenceFilter(1000, 0.01)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(base uint64) {
				defer wg.Done()
				for id := base * 100; id < base*100+100; id++ {
					f.Add(id)
					f.MayExist(id)
				}
			}(uint64(i))
		}
		wg.Wait()

		assert.True(t, f.MayExist(0))
	})
}
