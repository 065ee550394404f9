package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-advisor-backend/internal/cache"
	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/handler"
	"stock-advisor-backend/internal/logger"
	"stock-advisor-backend/internal/scheduler"
	"stock-advisor-backend/internal/session"
	"stock-advisor-backend/internal/store"
)

func init() {
	// 手动加载 .env 文件
	if !config.LoadEnvFile(".env") {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}
}

func main() {
	cfg := config.GetAppConfig()

	zl, err := logger.Init(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Error("服务异常退出", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	widgets, err := config.LoadWidgets(cfg.WidgetsFile)
	if err != nil {
		return err
	}

	provider, err := newCacheProvider(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer provider.Close()

	var (
		recorder client.Recorder
		fetchLog handler.FetchLogReader
	)
	if cfg.FetchLogDB != "" {
		fl, err := store.OpenFetchLog(cfg.FetchLogDB)
		if err != nil {
			return err
		}
		defer fl.Close()
		recorder, fetchLog = fl, fl
		zl.Info("诊断日志已启用", zap.String("path", cfg.FetchLogDB))

		pruneDone := scheduler.StartFetchLogPruneScheduler(ctx, fl, scheduler.PruneOptions{
			Retention:  cfg.FetchLogRetention,
			At:         cfg.FetchLogPruneAt,
			RetryCount: 3,
		}, logger.Named("scheduler"))
		defer func() {
			stop()
			<-pruneDone
		}()
	}

	fetchers, err := client.NewFetchers(widgets, nil, recorder)
	if err != nil {
		return err
	}
	for _, w := range widgets {
		zl.Info("组件已加载", zap.String("widget", w.Name), zap.String("endpoint", w.Endpoint))
	}

	h, err := handler.New(handler.Options{
		Widgets:    widgets,
		Fetchers:   fetchers,
		Sessions:   session.NewStore(provider, cfg.SessionTTL, cfg.InflightTTL),
		FetchLog:   fetchLog,
		Logger:     logger.Named("handler"),
		SessionTTL: cfg.SessionTTL,

		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		return err
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(logger.Named("http")))

	// 配置 CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	if err := h.Register(r); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		zl.Info("服务启动", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	zl.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCacheProvider 配置了 REDIS_ADDR 时使用 Redis，否则使用进程内缓存
func newCacheProvider(ctx context.Context, cfg *config.AppConfig, zl *zap.Logger) (cache.Provider, error) {
	if cfg.Redis.Addr == "" {
		zl.Info("未配置 Redis，会话状态保存在进程内")
		return cache.NewMemoryProvider(), nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p, err := cache.NewRedisProvider(pingCtx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	zl.Info("Redis连接成功", zap.String("addr", cfg.Redis.Addr))
	return p, nil
}
