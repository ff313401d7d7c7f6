// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// L 是全局的 zerolog 日志实例。
// 所有包都应该通过 logger.L 或 logger.Ctx(ctx) 输出日志，
// 避免每个包各自初始化一套日志配置。
var L zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	L = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 根据服务名和日志级别重新配置全局日志实例。
// 在 bootstrap 中调用一次。
func Init(serviceName, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	L = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个携带当前链路追踪信息的日志实例。
// 如果 ctx 中存在有效的 Span，日志会自动带上 trace_id / span_id，
// 方便在 Jaeger 和日志系统之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &L
	}
	l := L.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
