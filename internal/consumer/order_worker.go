package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/service/order"
	"flashsale/internal/service/seckill"
	"flashsale/pkg/lock"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
)

const orderLockKeyFormat = "lock:order:%d"

// OrderWorker drains the fulfillment queue with a single goroutine and
// writes admitted orders to the database. Messages for one voucher are
// handled strictly in admission order because there is only one consumer.
type OrderWorker struct {
	orderService order.OrderService
	messageQueue queue.MessageQueue
	redis        *goredis.Client
	tracer       *monitor.Tracer
	lockTTL      time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewOrderWorker creates an order worker
func NewOrderWorker(orderService order.OrderService, messageQueue queue.MessageQueue, redisClient *goredis.Client, tracer *monitor.Tracer, lockTTL time.Duration) *OrderWorker {
	return &OrderWorker{
		orderService: orderService,
		messageQueue: messageQueue,
		redis:        redisClient,
		tracer:       tracer,
		lockTTL:      lockTTL,
	}
}

// Start launches the consuming goroutine. Starting twice is a no-op.
func (w *OrderWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	log.Info("Starting order fulfillment worker")

	go w.run(ctx)
}

// Stop cancels the worker and waits for the in-flight message to finish.
func (w *OrderWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	log.Info("Order fulfillment worker stopped")
}

func (w *OrderWorker) run(ctx context.Context) {
	defer close(w.done)

	for {
		messageData, err := w.messageQueue.Consume(ctx, seckill.OrderTopic)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			log.Errorf("Failed to consume order message: %v", err)
			time.Sleep(time.Second)
			continue
		}

		// Shutdown must not abandon a message that was already dequeued.
		w.handle(context.WithoutCancel(ctx), messageData)
	}
}

// handle fulfills one admitted order under a per-user lock. The lock is
// tried exactly once: a held lock means another instance is fulfilling for
// the same user, and the admission it protects will be re-checked against
// the database anyway, so the message is dropped and counted rather than
// retried.
func (w *OrderWorker) handle(ctx context.Context, messageData []byte) {
	var msg model.OrderMessage
	if err := json.Unmarshal(messageData, &msg); err != nil {
		log.Errorf("Discarding malformed order message: %v", err)
		monitor.RecordFulfillmentDropped()
		return
	}

	ctx, span := w.tracer.StartFulfillmentSpan(ctx, msg.OrderID)
	defer span.End()

	userLock := lock.NewRedisLock(
		w.redis,
		fmt.Sprintf(orderLockKeyFormat, msg.UserID),
		uuid.NewString(),
		w.lockTTL,
	)

	if err := userLock.Lock(ctx); err != nil {
		log.WithFields(map[string]interface{}{
			"order_id": msg.OrderID,
			"user_id":  msg.UserID,
			"error":    err.Error(),
		}).Error("Failed to acquire user fulfillment lock, dropping order")
		monitor.RecordFulfillmentDropped()
		return
	}
	defer func() {
		if err := userLock.Unlock(ctx); err != nil {
			log.Warnf("Failed to release user %d fulfillment lock: %v", msg.UserID, err)
		}
	}()

	if err := w.orderService.CreateVoucherOrder(ctx, &msg); err != nil {
		w.tracer.RecordError(span, err)
		log.WithFields(map[string]interface{}{
			"order_id": msg.OrderID,
			"error":    err.Error(),
		}).Error("Failed to fulfill order")
	}
}
