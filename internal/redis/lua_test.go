package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGate(t *testing.T) (*AdmissionGate, *redis.Client) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		s.Close()
	})

	return NewAdmissionGate(client), client
}

func TestAdmissionGate(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstAttemptAdmits", func(t *testing.T) {
		gate, _ := setupGate(t)
		require.NoError(t, gate.InitVoucherStock(ctx, 10, 5, time.Hour))

		result, err := gate.TryReserve(ctx, 10, 100)
		require.NoError(t, err)
		assert.Equal(t, AdmitOK, result)

		stock, err := gate.GetVoucherStock(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, stock)

		admitted, err := gate.IsAdmitted(ctx, 10, 100)
		require.NoError(t, err)
		assert.True(t, admitted)
	})

	t.Run("DuplicateUserRejected", func(t *testing.T) {
		gate, _ := setupGate(t)
		require.NoError(t, gate.InitVoucherStock(ctx, 10, 5, time.Hour))

		result, err := gate.TryReserve(ctx, 10, 100)
		require.NoError(t, err)
		require.Equal(t, AdmitOK, result)

		result, err = gate.TryReserve(ctx, 10, 100)
		require.NoError(t, err)
		assert.Equal(t, AdmitDuplicate, result)

		// A rejected duplicate must not consume stock.
		stock, err := gate.GetVoucherStock(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, stock)
	})

	t.Run("OutOfStock", func(t *testing.T) {
		gate, _ := setupGate(t)
		require.NoError(t, gate.InitVoucherStock(ctx, 10, 1, time.Hour))

		result, err := gate.TryReserve(ctx, 10, 100)
		require.NoError(t, err)
		require.Equal(t, AdmitOK, result)

		result, err = gate.TryReserve(ctx, 10, 200)
		require.NoError(t, err)
		assert.Equal(t, AdmitOutOfStock, result)

		admitted, err := gate.IsAdmitted(ctx, 10, 200)
		require.NoError(t, err)
		assert.False(t, admitted)
	})

	t.Run("MissingStockKeyTreatedAsOutOfStock", func(t *testing.T) {
		gate, _ := setupGate(t)

		result, err := gate.TryReserve(ctx, 99, 100)
		require.NoError(t, err)
		assert.Equal(t, AdmitOutOfStock, result)
	})

	t.Run("DuplicateCheckedBeforeStock", func(t *testing.T) {
		gate, _ := setupGate(t)
		require.NoError(t, gate.InitVoucherStock(ctx, 10, 1, time.Hour))

		result, err := gate.TryReserve(ctx, 10, 100)
		require.NoError(t, err)
		require.Equal(t, AdmitOK, result)

		// Stock is now zero; a repeat buyer still reads as duplicate, not
		// out of stock.
		result, err = gate.TryReserve(ctx, 10, 100)
		require.NoError(t, err)
		assert.Equal(t, AdmitDuplicate, result)
	})

	t.Run("SeparateVouchersAreIndependent", func(t *testing.T) {
		gate, _ := setupGate(t)
		require.NoError(t, gate.InitVoucherStock(ctx, 1, 1, time.Hour))
		require.NoError(t, gate.InitVoucherStock(ctx, 2, 1, time.Hour))

		result, err := gate.TryReserve(ctx, 1, 100)
		require.NoError(t, err)
		require.Equal(t, AdmitOK, result)

		result, err = gate.TryReserve(ctx, 2, 100)
		require.NoError(t, err)
		assert.Equal(t, AdmitOK, result)
	})
}

func TestAdmissionGateNeverOversells(t *testing.T) {
	gate, _ := setupGate(t)
	ctx := context.Background()

	const stock = 5
	const attempts = 40

	require.NoError(t, gate.InitVoucherStock(ctx, 10, stock, time.Hour))

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			result, err := gate.TryReserve(ctx, 10, userID)
			if err != nil {
				t.Errorf("TryReserve failed: %v", err)
				return
			}
			if result == AdmitOK {
				atomic.AddInt64(&admitted, 1)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, int64(stock), admitted)

	remaining, err := gate.GetVoucherStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestAdmissionGateConcurrentSameUser(t *testing.T) {
	gate, _ := setupGate(t)
	ctx := context.Background()

	require.NoError(t, gate.InitVoucherStock(ctx, 10, 100, time.Hour))

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := gate.TryReserve(ctx, 10, 7)
			if err != nil {
				t.Errorf("TryReserve failed: %v", err)
				return
			}
			if result == AdmitOK {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	// One user racing against itself gets exactly one admission.
	assert.Equal(t, int64(1), admitted)

	remaining, err := gate.GetVoucherStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 99, remaining)
}
