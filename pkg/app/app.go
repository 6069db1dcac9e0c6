// Package app 组装服务端：配置、日志、追踪、指标、存储、定时任务与 HTTP 路由.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/jobs"
	"github.com/yeisme/propvault/pkg/internal/router"
	"github.com/yeisme/propvault/pkg/internal/service"
	"github.com/yeisme/propvault/pkg/internal/storage"
	"github.com/yeisme/propvault/pkg/log"
	"github.com/yeisme/propvault/pkg/metrics"
	"github.com/yeisme/propvault/pkg/middleware"
	"github.com/yeisme/propvault/pkg/scheduler"
	"github.com/yeisme/propvault/pkg/tracing"
)

// shutdownTimeout 优雅退出的最长等待时间.
const shutdownTimeout = 15 * time.Second

// App 服务端实例.
type App struct {
	Engine    *gin.Engine
	Manager   *storage.Manager
	Scheduler *scheduler.Scheduler

	config *configs.AppConfig
	cancel context.CancelFunc
}

// NewApp 读取 configPath 下的配置并初始化全部依赖. configPath 为空时只使用默认值与环境变量.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	sched, err := scheduler.NewScheduler()
	if err != nil {
		_ = manager.Close()

		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, manager, config.Trash); err != nil {
		_ = sched.Stop()
		_ = manager.Close()

		return nil, fmt.Errorf("register jobs: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var consumer service.Consumer
	if mq := manager.GetMQClient(); mq != nil {
		consumer = mq
	}

	if err := service.StartCacheInvalidator(runCtx, consumer, manager.GetCache()); err != nil {
		cancel()
		_ = sched.Stop()
		_ = manager.Close()

		return nil, fmt.Errorf("start cache invalidator: %w", err)
	}

	return &App{
		Engine:    NewEngine(config, manager, sched),
		Manager:   manager,
		Scheduler: sched,
		config:    config,
		cancel:    cancel,
	}, nil
}

// NewEngine 创建挂载了通用中间件、资源注入与全部路由的 gin.Engine. sched 可以为 nil.
func NewEngine(config *configs.AppConfig, manager *storage.Manager, sched *scheduler.Scheduler) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.Common(config)...)
	engine.Use(middleware.StorageMiddleware(manager))

	if sched != nil {
		engine.Use(middleware.SchedulerMiddleware(sched))
	}

	metrics.RegisterHandler(config.Metrics, engine)
	router.Register(engine, &config.Server)

	return engine
}

// Run 启动定时任务与 HTTP 服务，ctx 结束后优雅退出并释放资源.
func (a *App) Run(ctx context.Context) error {
	l := log.Component("app")

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.config.Server.Host, strconv.Itoa(a.config.Server.Port)),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	a.Scheduler.Start()

	errCh := make(chan error, 1)

	go func() {
		l.Info().Str("addr", srv.Addr).Str("base_path", a.config.Server.BasePath).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("http server shutdown")
	}

	if err := a.Close(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("release resources")
	}

	l.Info().Msg("server stopped")

	return runErr
}

// Close 停止定时任务与缓存订阅，关闭存储并刷新追踪数据.
func (a *App) Close(ctx context.Context) error {
	a.cancel()

	return errors.Join(
		a.Scheduler.Stop(),
		a.Manager.Close(),
		tracing.ShutdownTracer(ctx),
	)
}
