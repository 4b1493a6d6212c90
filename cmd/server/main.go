package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"learnhub/config"
	"learnhub/internal/api/handler"
	"learnhub/internal/api/middleware"
	"learnhub/internal/api/router"
	"learnhub/internal/repository"
	"learnhub/internal/service"
	"learnhub/pkg/database"
	"learnhub/pkg/docstore"
	"learnhub/pkg/jwt"
	applogger "learnhub/pkg/logger"
	"learnhub/pkg/objectstore"
	"learnhub/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("timezone", cfg.App.Timezone),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 连接 Redis（可选：连接失败时降级为单实例运行）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，Token 黑名单与变更广播仅在本实例生效", zap.Error(err))
			rdb = nil
		}
	}

	var notifier docstore.Notifier
	if rdb != nil {
		notifier, err = docstore.NewBroadcastNotifier(ctx, rdb, cfg.Redis.Channel, logger)
		if err != nil {
			logger.Warn("订阅文档变更频道失败，改用本地通知", zap.Error(err))
			notifier = nil
		}
	}

	// 4. 打开文档存储
	store, err := openStore(ctx, cfg, notifier, logger)
	if err != nil {
		logger.Fatal("文档存储初始化失败", zap.Error(err))
	}

	// 5. 打开对象存储
	objects, files, err := openObjects(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("对象存储初始化失败", zap.Error(err))
	}

	// 6. 初始化 JWT 管理器与 Token 黑名单
	jwtMgr := jwt.NewManager(&cfg.Auth)

	var (
		blacklist service.TokenBlacklist = service.NewMemoryBlacklist()
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(store, logger)
	svc := service.NewService(cfg, repo, service.Deps{
		Objects:   objects,
		JWT:       jwtMgr,
		Blacklist: blacklist,
	}, logger)
	h := handler.NewHandler(cfg, svc, files)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, router.Deps{
		JWT:       jwtMgr,
		Blacklist: blacklist,
		Limiter:   limiter,
	}, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	// WriteTimeout 为 0：学习进度 SSE 连接需要长时间保持
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	// 先结束订阅，SSE 连接随之退出
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := store.Close(); err != nil {
		logger.Error("关闭文档存储失败", zap.Error(err))
	}
	if err := objects.Close(); err != nil {
		logger.Error("关闭对象存储失败", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// openStore 按 store.driver 打开文档存储
func openStore(ctx context.Context, cfg *config.Config, notifier docstore.Notifier, logger *zap.Logger) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewDB(&cfg.DB, cfg.Log.Level, logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			return nil, err
		}
		return docstore.NewPostgresStore(db, notifier, logger), nil

	case config.StoreDriverMongo:
		return docstore.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, notifier, logger)

	case config.StoreDriverMemory, "":
		logger.Warn("使用内存文档存储，重启后数据丢失")
		return docstore.NewMemoryStore(notifier, logger), nil

	default:
		return nil, fmt.Errorf("未知的 store.driver: %s", cfg.Store.Driver)
	}
}

// openObjects 按 storage.driver 打开对象存储；内存存储同时作为 /files 的文件源
func openObjects(ctx context.Context, cfg *config.Config, logger *zap.Logger) (objectstore.Store, handler.ObjectReader, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverGCS:
		gcs, err := objectstore.NewGCSStore(ctx, &cfg.Storage, logger)
		if err != nil {
			return nil, nil, err
		}
		return gcs, nil, nil

	case config.StorageDriverMemory, "":
		mem := objectstore.NewMemoryStore(cfg.Server.BaseURL + "/files")
		return mem, mem, nil

	default:
		return nil, nil, fmt.Errorf("未知的 storage.driver: %s", cfg.Storage.Driver)
	}
}
