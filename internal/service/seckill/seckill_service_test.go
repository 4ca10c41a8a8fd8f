package seckill

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"flashsale/internal/model"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/pkg/idgen"
	"flashsale/pkg/queue"
)

type fakeVoucherRepo struct {
	vouchers map[uint64]*model.SeckillVoucher
}

func (f *fakeVoucherRepo) GetByID(ctx context.Context, id uint64) (*model.Voucher, error) {
	return nil, repository.ErrVoucherNotFound
}

func (f *fakeVoucherRepo) GetSeckillVoucher(ctx context.Context, voucherID uint64) (*model.SeckillVoucher, error) {
	sv, ok := f.vouchers[voucherID]
	if !ok {
		return nil, repository.ErrVoucherNotFound
	}
	return sv, nil
}

func (f *fakeVoucherRepo) ListActiveSeckillVouchers(ctx context.Context) ([]*model.SeckillVoucher, error) {
	var out []*model.SeckillVoucher
	for _, sv := range f.vouchers {
		out = append(out, sv)
	}
	return out, nil
}

func (f *fakeVoucherRepo) DecrementStock(ctx context.Context, voucherID uint64) (bool, error) {
	return true, nil
}

func (f *fakeVoucherRepo) WithTx(tx *gorm.DB) repository.VoucherRepository {
	return f
}

type testEnv struct {
	svc    SeckillService
	queue  *queue.MemoryQueue
	gate   *redis.AdmissionGate
	repo   *fakeVoucherRepo
	client *goredis.Client
}

func setupSeckill(t *testing.T, queueCapacity int) *testEnv {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{
		Addr: s.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		s.Close()
	})

	repo := &fakeVoucherRepo{vouchers: map[uint64]*model.SeckillVoucher{
		10: {
			VoucherID: 10,
			Stock:     5,
			BeginTime: time.Now().Add(-time.Hour),
			EndTime:   time.Now().Add(time.Hour),
		},
	}}

	cache, err := NewVoucherCache(client, repo, time.Minute, time.Hour)
	require.NoError(t, err)

	gate := redis.NewAdmissionGate(client)
	q := queue.NewMemoryQueue(queueCapacity)
	t.Cleanup(func() { q.Close() })

	svc := NewSeckillService(repo, cache, gate, idgen.NewGenerator(client), q, client, time.Hour)

	return &testEnv{svc: svc, queue: q, gate: gate, repo: repo, client: client}
}

func TestSeckillVoucher_Admits(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	require.NoError(t, env.svc.PrewarmVoucher(ctx, 10))

	orderID, err := env.svc.SeckillVoucher(ctx, 10, 100)
	require.NoError(t, err)
	assert.NotZero(t, orderID)

	// The admitted order is queued for fulfillment.
	data, err := env.queue.Consume(ctx, OrderTopic)
	require.NoError(t, err)

	var msg model.OrderMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, orderID, msg.OrderID)
	assert.Equal(t, uint64(100), msg.UserID)
	assert.Equal(t, uint64(10), msg.VoucherID)
	assert.NotZero(t, msg.Timestamp)

	stock, err := env.gate.GetVoucherStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
}

func TestSeckillVoucher_RejectsDuplicateUser(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	require.NoError(t, env.svc.PrewarmVoucher(ctx, 10))

	_, err := env.svc.SeckillVoucher(ctx, 10, 100)
	require.NoError(t, err)

	_, err = env.svc.SeckillVoucher(ctx, 10, 100)
	assert.ErrorIs(t, err, ErrAlreadyPurchased)

	// The rejected repeat did not consume stock.
	stock, err := env.gate.GetVoucherStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
}

func TestSeckillVoucher_RejectionsMintNoID(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	require.NoError(t, env.svc.PrewarmVoucher(ctx, 10))

	_, err := env.svc.SeckillVoucher(ctx, 10, 100)
	require.NoError(t, err)

	_, err = env.svc.SeckillVoucher(ctx, 10, 100)
	assert.ErrorIs(t, err, ErrAlreadyPurchased)

	// The gate runs before the generator, so the rejected repeat left the
	// id counter untouched.
	counterKey := fmt.Sprintf("icr:order:%s", time.Now().UTC().Format("2006:01:02"))
	count, err := env.client.Get(ctx, counterKey).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSeckillVoucher_RejectsWhenStockExhausted(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	env.repo.vouchers[10].Stock = 1
	require.NoError(t, env.svc.PrewarmVoucher(ctx, 10))

	_, err := env.svc.SeckillVoucher(ctx, 10, 100)
	require.NoError(t, err)

	_, err = env.svc.SeckillVoucher(ctx, 10, 200)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestSeckillVoucher_WindowChecks(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	env.repo.vouchers[20] = &model.SeckillVoucher{
		VoucherID: 20,
		Stock:     5,
		BeginTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}
	env.repo.vouchers[30] = &model.SeckillVoucher{
		VoucherID: 30,
		Stock:     5,
		BeginTime: time.Now().Add(-2 * time.Hour),
		EndTime:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.svc.PrewarmVoucher(ctx, 20))
	require.NoError(t, env.svc.PrewarmVoucher(ctx, 30))

	_, err := env.svc.SeckillVoucher(ctx, 20, 100)
	assert.ErrorIs(t, err, ErrSeckillNotStarted)

	_, err = env.svc.SeckillVoucher(ctx, 30, 100)
	assert.ErrorIs(t, err, ErrSeckillEnded)

	// Neither rejection touched the gate.
	stock, err := env.gate.GetVoucherStock(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)
}

func TestSeckillVoucher_QueueFullRejectsAsOverload(t *testing.T) {
	env := setupSeckill(t, 1)
	ctx := context.Background()

	require.NoError(t, env.svc.PrewarmVoucher(ctx, 10))

	_, err := env.svc.SeckillVoucher(ctx, 10, 100)
	require.NoError(t, err)

	_, err = env.svc.SeckillVoucher(ctx, 10, 200)
	assert.ErrorIs(t, err, ErrSystemOverloaded)
}

func TestSeckillVoucher_DegradeSwitch(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	require.NoError(t, env.svc.PrewarmVoucher(ctx, 10))
	require.NoError(t, env.svc.DegradeVoucher(ctx, 10, "maintenance", 0))

	_, err := env.svc.SeckillVoucher(ctx, 10, 100)
	assert.ErrorIs(t, err, ErrServiceDegraded)

	// The switch sits in front of the gate, so no stock moved.
	stock, err := env.gate.GetVoucherStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	require.NoError(t, env.svc.RestoreVoucher(ctx, 10))

	_, err = env.svc.SeckillVoucher(ctx, 10, 100)
	assert.NoError(t, err)
}

func TestSeckillVoucher_UnknownVoucher(t *testing.T) {
	env := setupSeckill(t, 16)

	_, err := env.svc.SeckillVoucher(context.Background(), 999, 100)
	assert.ErrorIs(t, err, repository.ErrVoucherNotFound)
}

func TestPrewarmAll(t *testing.T) {
	env := setupSeckill(t, 16)
	ctx := context.Background()

	env.repo.vouchers[20] = &model.SeckillVoucher{
		VoucherID: 20,
		Stock:     3,
		BeginTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}

	require.NoError(t, env.svc.PrewarmAll(ctx))

	stock, err := env.gate.GetVoucherStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	stock, err = env.gate.GetVoucherStock(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)
}
