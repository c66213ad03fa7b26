package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wyfcoding/pricecache/internal/pricecache/application"
	"github.com/wyfcoding/pricecache/internal/pricecache/domain"
	"github.com/wyfcoding/pricecache/internal/pricecache/interfaces/consumer"
	httphandler "github.com/wyfcoding/pricecache/internal/pricecache/interfaces/http"
	"github.com/wyfcoding/pricecache/pkg/cache"
	"github.com/wyfcoding/pricecache/pkg/config"
	"github.com/wyfcoding/pricecache/pkg/logger"
	"github.com/wyfcoding/pricecache/pkg/metrics"
	"github.com/wyfcoding/pricecache/pkg/middleware"
	"github.com/wyfcoding/pricecache/pkg/mq"
	"github.com/wyfcoding/pricecache/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", config.GetEnv("APP_CONFIG", "configs/config.toml"), "path to config file")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal(ctx, "Service exited with error", "error", err)
	}
	logger.Info(context.Background(), "Service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.Info(ctx, "Starting service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// 缓存与应用服务
	priceCache := domain.NewPriceCache(cfg.Cache.MaxCachedDays, domain.WithObserver(application.NewCacheObserver(m)))
	priceService := application.NewPriceApplicationService(priceCache, m)
	logger.Info(ctx, "Price cache created", "max_cached_days", priceCache.Capacity())

	// HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.GinLoggingMiddleware(),
		middleware.GinRecoveryMiddleware(),
		middleware.GinCORSMiddleware(),
		middleware.GinMetricsMiddleware(m),
	)

	var publishMiddlewares []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter, closeLimiter := newLimiter(ctx, cfg)
		defer closeLimiter()
		publishMiddlewares = append(publishMiddlewares, middleware.RateLimitMiddleware(limiter, ratelimit.Limit{
			Rate:   cfg.RateLimit.Rate,
			Period: cfg.RateLimit.Period,
			Burst:  cfg.RateLimit.Burst,
		}))
	}

	httphandler.NewHandler(priceService).RegisterRoutes(router, publishMiddlewares...)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"resident":  priceCache.Len(),
			"timestamp": time.Now().Unix(),
		})
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(fmt.Sprintf(":%d", cfg.Metrics.Port), cfg.Metrics.Path, registry)
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if cfg.Kafka.Enabled {
		kafkaCfg := mq.KafkaConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.Kafka.GroupID,
			SessionTimeout: cfg.Kafka.SessionTimeout,
			MaxRetries:     cfg.Kafka.MaxRetries,
			RetryBackoff:   cfg.Kafka.RetryBackoff,
		}
		kafkaConsumer := mq.NewConsumer(kafkaCfg, cfg.Kafka.Topic)
		defer kafkaConsumer.Close()

		var dlq consumer.DeadLetterSink
		if cfg.Kafka.DLQTopic != "" {
			producer := mq.NewProducer(kafkaCfg)
			defer producer.Close()
			dlq = mq.NewDeadLetterQueue(producer, cfg.Kafka.DLQTopic)
		}

		feed := consumer.NewPriceHandler(kafkaConsumer, dlq, priceService, m)
		g.Go(func() error { return feed.Run(gctx) })
	}

	// 收到信号或任一组件失败后优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newLimiter 优先使用 Redis 分布式限流，Redis 不可用时退化为进程内限流
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.RateLimiter, func()) {
	rc, err := cache.New(ctx, cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Warn(ctx, "Redis unavailable, using in-process rate limiter", "error", err)
		return ratelimit.NewLocalRateLimiter(), func() {}
	}
	return ratelimit.NewRedisRateLimiter(rc.GetClient()), func() { _ = rc.Close() }
}
