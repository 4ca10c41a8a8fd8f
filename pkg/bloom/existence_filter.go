package bloom

import (
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// ExistenceFilter guards cache-aside reads against penetration: ids that were
// never loaded into the filter are rejected before touching Redis or MySQL.
// False positives fall through to the normal lookup path and are harmless.
type ExistenceFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewExistenceFilter creates a filter sized for the expected number of ids at
// the given false positive rate.
func NewExistenceFilter(expectedElements uint, falsePositiveRate float64) *ExistenceFilter {
	if expectedElements == 0 {
		expectedElements = 1_000_000
	}
	if falsePositiveRate <= 0 {
		falsePositiveRate = 0.01
	}

	return &ExistenceFilter{
		filter: bloom.NewWithEstimates(expectedElements, falsePositiveRate),
	}
}

// Add records an id as existing.
func (f *ExistenceFilter) Add(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(strconv.FormatUint(id, 10))
}

// MayExist reports whether the id might exist. A false result is definitive.
func (f *ExistenceFilter) MayExist(id uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(strconv.FormatUint(id, 10))
}
