package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/duochat/duochat-backend/internal/api"
	"github.com/duochat/duochat-backend/internal/config"
	"github.com/duochat/duochat-backend/internal/matchmaking"
	"github.com/duochat/duochat-backend/internal/repository"
	"github.com/duochat/duochat-backend/internal/service"
	"github.com/duochat/duochat-backend/internal/websocket"
	"github.com/duochat/duochat-backend/pkg/database"
	"github.com/duochat/duochat-backend/pkg/distributed"
	jwtutil "github.com/duochat/duochat-backend/pkg/jwt"
	"github.com/duochat/duochat-backend/pkg/logger"
	"github.com/duochat/duochat-backend/pkg/ratelimit"
	"github.com/duochat/duochat-backend/pkg/rtctoken"
	"github.com/redis/go-redis/v9"
)

const (
	ownerLeaseKey = "matchmaking:owner"
	ownerLeaseTTL = 30 * time.Second
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting duochat backend",
		"port", cfg.Port,
		"env", cfg.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 데이터베이스 연결
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", "error", err)
	}

	// Redis (선택)
	var (
		redisClient *redis.Client
		lease       *distributed.Lease
		leaseLost   <-chan struct{}
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", "error", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}

		// 대기열은 프로세스 메모리에 있으므로 한 인스턴스만 매칭을 담당한다
		lease, err = distributed.AcquireLease(ctx, distributed.NewRedisLockManager(redisClient),
			ownerLeaseKey, ownerLeaseTTL, 2*ownerLeaseTTL, logger.Named("lease"))
		if err != nil {
			logger.Fatal("Another instance owns the matchmaking queue", "key", ownerLeaseKey, "error", err)
		}
		leaseLost = lease.Lost()
	}

	// Repository 초기화
	userRepo := repository.NewUserRepository(db)
	callRepo := repository.NewCallRepository(db)

	// Media token issuer
	issuer, err := rtctoken.NewBuilder(cfg.MediaAppID, cfg.MediaAppCertificate)
	if err != nil {
		logger.Fatal("Failed to create media token builder", "error", err)
	}

	var mailbox matchmaking.Mailbox = matchmaking.NewMemoryMailbox()
	if cfg.MailboxBackend == config.MailboxRedis {
		mailbox = matchmaking.NewRedisMailbox(redisClient, "matchmaking:mailbox:", cfg.MediaTokenExpiry)
	}

	var joinLimiter ratelimit.Limiter
	if cfg.JoinRateLimit > 0 {
		if redisClient != nil {
			joinLimiter = ratelimit.NewRedisRateLimiter(redisClient, "ratelimit:join:", cfg.JoinRateLimit, time.Minute)
		} else {
			memLimiter := ratelimit.NewWindowLimiter(cfg.JoinRateLimit, time.Minute, 5*time.Minute)
			defer memLimiter.Stop()
			joinLimiter = memLimiter
		}
	}

	// WebSocket Hub 초기화 및 시작
	wsHub := websocket.NewHub(logger.L())
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go wsHub.Run(hubCtx)

	callService := service.NewCallService(
		callRepo,
		userRepo,
		issuer,
		mailbox,
		wsHub,
		service.CallServiceConfig{
			QueueTTL:        cfg.QueueTTL,
			SweepInterval:   cfg.QueueSweepInterval,
			TokenTTL:        cfg.MediaTokenExpiry,
			RequireVerified: cfg.RequireVerified,
		},
		logger.Named("calls"),
	)
	callService.Start()
	defer callService.Stop()

	router := api.SetupRouter(cfg, api.Dependencies{
		Calls:       callService,
		Stats:       callService,
		Users:       userRepo,
		DB:          db,
		Hub:         wsHub,
		JoinLimiter: joinLimiter,
		JWTManager:  jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
	})

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown 대기
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case <-leaseLost:
		logger.Error("Lost matchmaking ownership, shutting down", "key", ownerLeaseKey)
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	// 10초 타임아웃으로 종료
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if lease != nil {
		if err := lease.Release(shutdownCtx); err != nil && !errors.Is(err, distributed.ErrLockNotHeld) {
			logger.Warn("Failed to release matchmaking lease", "error", err)
		}
	}

	logger.Info("Server exited")
}
