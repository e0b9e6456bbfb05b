package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koopa0/virtualspace/internal/auth"
	"github.com/koopa0/virtualspace/internal/config"
	"github.com/koopa0/virtualspace/internal/game"
	"github.com/koopa0/virtualspace/internal/registry"
	"github.com/koopa0/virtualspace/internal/server"
	"github.com/koopa0/virtualspace/internal/store"
	"github.com/koopa0/virtualspace/internal/tilemap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置檔案路徑")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 設定日誌
	var logger *slog.Logger
	if cfg.Log.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.Log.Level),
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.Log.Level),
		}))
	}
	slog.SetDefault(logger)

	ctx := context.Background()

	// 連接 PostgreSQL（使用者與頻道設定）
	pg, err := store.NewPostgres(ctx, cfg.PostgresDSN(), logger)
	if err != nil {
		logger.Error("連接 postgres 失敗", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("建立表結構失敗", "error", err)
		os.Exit(1)
	}

	// 房間目錄：多程序部署用 Redis 做原子頻道預約，單程序退回記憶體
	var roomRegistry registry.Registry
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("連接 redis 失敗", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		roomRegistry = registry.NewRedis(redisClient)
		logger.Info("房間目錄使用 redis", "addr", cfg.Redis.Addr)
	} else {
		roomRegistry = registry.NewMemory()
		logger.Info("房間目錄使用記憶體")
	}

	gate := auth.NewGate([]byte(cfg.Auth.JWTSecret), pg)
	factory := game.NewFactory(pg, tilemap.NewDirStore(cfg.Maps.Dir), roomRegistry, logger)
	hub := server.NewHub(gate, factory, logger)
	handler := server.NewHandler(hub, roomRegistry, pg, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("伺服器啟動", "port", cfg.Server.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("伺服器錯誤", "error", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		logger.Info("收到關閉訊號", "signal", sig)

		// 給予 30 秒時間完成當前請求
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// 先停 Hub：銷毀房間並釋放頻道預約
		hub.Stop()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("關閉伺服器失敗", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				logger.Error("強制關閉伺服器失敗", "error", closeErr)
			}
		}
	}

	logger.Info("伺服器已停止")
}

// parseLogLevel 解析日誌級別
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
