// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/nacos"
	"ordercore/internal/tracing"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // Nacos 关闭时为 nil
	Config *Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 注册服务自己的路由，返回的清理函数在关停时按注册的逆序执行。
	RegisterHandlers func(appCtx AppCtx) (cleanup func(ctx context.Context), err error)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg, err := Load("")
	if err != nil {
		logger.Init(info.ServiceName, "info")
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(info.ServiceName, cfg.App.LogLevel)
	log := logger.Ctx(context.Background())

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var naming *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		naming, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = outboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := naming.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	var cleanup func(ctx context.Context)
	if info.RegisterHandlers != nil {
		cleanup, err = info.RegisterHandlers(AppCtx{Mux: mux, Nacos: naming, Config: cfg})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to wire service")
		}
	}

	handler := tracing.Middleware(otel.Tracer(info.ServiceName), logger.Middleware(identity.Middleware(mux)))
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", info.Port).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("shutting down service %s", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先从注册中心摘除，再停止接收请求，最后释放下游资源
	if naming != nil {
		if err := naming.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("error deregistering from nacos")
		}
		naming.Close()
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if cleanup != nil {
		cleanup(ctx)
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	log.Info().Msgf("service %s gracefully shut down", info.ServiceName)
}

func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
