package handler

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracerOnce sync.Once
	tracerInst trace.Tracer
)

// tracer 第一次使用时才获取, 之前注册的全局 TracerProvider 都会生效
func tracer() trace.Tracer {
	tracerOnce.Do(func() {
		tracerInst = otel.Tracer("route-planner/handler")
	})
	return tracerInst
}
