// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 设置全局 logger。level 无法解析时回退到 info。
func Init(serviceName, level string) {
	InitWithWriter(serviceName, level, os.Stdout)
}

func InitWithWriter(serviceName, level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回 context 上的 logger。没有时使用全局 logger，并尽量带上 trace_id。
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l := log.Logger.With().Str("trace_id", sc.TraceID().String()).Logger()
		return &l
	}
	return &log.Logger
}

// Middleware 为每个请求挂上带 trace_id 的 logger，需要放在 tracing 之后。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := log.Logger.With().Str("method", r.Method).Str("path", r.URL.Path)
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			lc = lc.Str("trace_id", sc.TraceID().String())
		}
		l := lc.Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}
