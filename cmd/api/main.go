package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flashsale/internal/config"
	"flashsale/internal/consumer"
	"flashsale/internal/database"
	"flashsale/internal/handler"
	"flashsale/internal/middleware"
	"flashsale/internal/monitor"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/internal/service/order"
	"flashsale/internal/service/seckill"
	"flashsale/internal/service/shop"
	"flashsale/internal/service/stock"
	"flashsale/internal/utils"
	"flashsale/pkg/bloom"
	"flashsale/pkg/idgen"
	"flashsale/pkg/limiter"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := database.Init(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := database.CreateIndexes(database.GetDB()); err != nil {
		log.Warnf("Failed to create indexes: %v", err)
	}

	if err := redis.Init(cfg); err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	defer redis.Close()

	redisClient := redis.GetClient()
	if err := redis.InitGate(redisClient); err != nil {
		log.Fatalf("Failed to initialize admission gate: %v", err)
	}

	tracer, err := monitor.NewTracer(cfg.Tracing)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			log.Warnf("Failed to shut down tracer: %v", err)
		}
	}()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	db := database.GetDB()

	// Repositories
	voucherRepo := repository.NewVoucherRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	shopRepo := repository.NewShopRepository(db)

	// Core components
	idGenerator := idgen.NewGenerator(redisClient)
	messageQueue := queue.NewMemoryQueue(cfg.Seckill.QueueCapacity)

	voucherCache, err := seckill.NewVoucherCache(redisClient, voucherRepo, cfg.Seckill.LocalCacheTTL, cfg.Seckill.VoucherCacheTTL)
	if err != nil {
		log.Fatalf("Failed to create voucher cache: %v", err)
	}

	shopFilter := bloom.NewExistenceFilter(1_000_000, 0.01)

	// Services
	seckillService := seckill.NewSeckillService(
		voucherRepo,
		voucherCache,
		redis.Gate,
		idGenerator,
		messageQueue,
		redisClient,
		cfg.Seckill.VoucherCacheTTL,
	)
	orderService := order.NewOrderService(db, orderRepo, voucherRepo)
	shopService := shop.NewShopService(shopRepo, redisClient, shopFilter, cfg.Seckill.ShopCacheTTL)

	// Warm caches before taking traffic. Both steps tolerate failure: the
	// services fall back to the database.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := seckillService.PrewarmAll(warmCtx); err != nil {
		log.Warnf("Voucher prewarm failed: %v", err)
	}
	if err := shopService.WarmExistenceFilter(warmCtx); err != nil {
		log.Warnf("Shop filter warmup failed: %v", err)
	}
	warmCancel()

	// Fulfillment worker: single consumer, owned lifecycle.
	orderWorker := consumer.NewOrderWorker(orderService, messageQueue, redisClient, tracer, cfg.Seckill.OrderLockTTL)
	orderWorker.Start(context.Background())

	// Background observers: queue depth gauge and stock reconciliation.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	go reportQueueDepth(bgCtx, messageQueue)

	reconciler := stock.NewReconciler(voucherRepo, orderRepo, redis.Gate, cfg.Seckill.VoucherCacheTTL)
	go reconciler.Run(bgCtx, cfg.Seckill.ReconcileInterval)

	router := setupRouter(cfg, seckillService, orderService, shopService, tracer)

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop admitting first, then drain the in-flight fulfillment.
	bgCancel()
	orderWorker.Stop()
	messageQueue.Close()

	log.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	seckillService seckill.SeckillService,
	orderService order.OrderService,
	shopService shop.ShopService,
	tracer *monitor.Tracer,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	if cfg.Security.CORS.Enabled {
		router.Use(middleware.CORS(cfg.Security.CORS.AllowOrigins))
	}
	if cfg.RateLimit.Enabled {
		router.Use(middleware.LocalRateLimit(float64(cfg.RateLimit.Local.RPS), cfg.RateLimit.Local.Burst))
	}

	router.GET("/health", healthCheck)
	router.GET("/ping", ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	jwtManager := utils.NewJWTManager(
		cfg.Security.JWT.Secret,
		cfg.Security.JWT.Issuer,
		cfg.Security.JWT.Expire,
	)

	seckillHandler := handler.NewSeckillHandler(seckillService, tracer)
	orderHandler := handler.NewOrderHandler(orderService)
	shopHandler := handler.NewShopHandler(shopService)

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/health", healthCheck)
			v1.GET("/ping", ping)

			// Public shop reads
			v1.GET("/shops/:id", shopHandler.GetShop)

			protected := v1.Group("")
			protected.Use(middleware.Auth(jwtManager))
			{
				protected.PUT("/shops/:id", shopHandler.UpdateShop)

				protected.GET("/orders", orderHandler.ListOrders)
				protected.GET("/orders/:id", orderHandler.GetOrder)

				seckillGroup := protected.Group("/vouchers")
				if cfg.RateLimit.Enabled {
					userLimiter := limiter.NewSlidingWindowLimiter(
						redis.GetClient(),
						cfg.RateLimit.PerUser.Limit,
						cfg.RateLimit.PerUser.Window,
					)
					seckillGroup.Use(middleware.UserRateLimit(userLimiter))
				}
				{
					seckillGroup.POST("/:id/seckill", seckillHandler.SeckillVoucher)
					seckillGroup.POST("/:id/prewarm", seckillHandler.PrewarmVoucher)
					seckillGroup.POST("/:id/degrade", seckillHandler.DegradeVoucher)
					seckillGroup.DELETE("/:id/degrade", seckillHandler.RestoreVoucher)
				}
			}
		}
	}

	return router
}

// reportQueueDepth samples the fulfillment backlog for the metrics gauge.
func reportQueueDepth(ctx context.Context, q *queue.MemoryQueue) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitor.SetQueueDepth(q.Len(seckill.OrderTopic))
		}
	}
}

func healthCheck(c *gin.Context) {
	dbErr := database.Health()
	redisErr := redis.Health()

	health := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"services": gin.H{
			"database": serviceHealth(dbErr),
			"redis":    serviceHealth(redisErr),
		},
	}

	if dbErr != nil || redisErr != nil {
		health["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

func serviceHealth(err error) gin.H {
	if err != nil {
		return gin.H{"healthy": false, "error": err.Error()}
	}
	return gin.H{"healthy": true, "status": "connected"}
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}
