// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"atlas/internal/pkg/config"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/nacos"
	"atlas/internal/pkg/tracing"
	"atlas/internal/pkg/utils"
)

// AppCtx 传递给各服务的路由注册回调。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config
	Nacos  *nacos.Client
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在优雅关停时执行，用于关闭服务自己持有的资源(DB、kafka writer 等)
	OnShutdown func(ctx context.Context)
}

var (
	initOnce  sync.Once
	globalCfg *config.Config
)

// Init 加载配置并初始化日志。必须在 StartService 之前调用。
func Init(serviceName string) *config.Config {
	initOnce.Do(func() {
		cfg, err := config.Load(config.GetEnv("CONFIG_FILE", ""))
		if err != nil {
			logger.L.Fatal().Err(err).Msg("failed to load config")
		}
		globalCfg = cfg
		logger.Init(serviceName, cfg.Service.LogLevel)
	})
	return globalCfg
}

// StartService 封装了所有服务的通用启动和优雅关停逻辑:
// 配置加载 → Tracer → Nacos 注册 → HTTP Server → 信号处理。
func StartService(info AppInfo) {
	cfg := Init(info.ServiceName)

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	namingClient, err := nacos.NewClient(cfg.Nacos)
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	ip, err := utils.GetOutboundIP()
	if err != nil {
		logger.L.Fatal().Err(err).Msg("failed to get outbound IP address")
	}

	if err := namingClient.Register(info.ServiceName, ip, info.Port); err != nil {
		logger.L.Fatal().Err(err).Msg("failed to register service with nacos")
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: cfg, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.L.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L.Info().Msgf("shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关停顺序与启动顺序相反
	if err := namingClient.Deregister(info.ServiceName, ip, info.Port); err != nil {
		logger.L.Error().Err(err).Msg("error deregistering from nacos")
	}

	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		logger.L.Error().Err(err).Msg("error shutting down tracer provider")
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error().Err(err).Msg("error shutting down http server")
	}

	logger.L.Info().Msgf("service %s gracefully shut down", info.ServiceName)
}
