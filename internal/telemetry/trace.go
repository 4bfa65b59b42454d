/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package telemetry wires OpenTelemetry tracing for remediation runs.
// telemetry 包为修复运行接入 OpenTelemetry 链路追踪。
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/seatunnel/remediator/internal/config"
)

const instrumentationName = "github.com/seatunnel/remediator"

// TraceParentEnv lets a caller hand its trace context to the remediator
// TraceParentEnv 允许调用方将其追踪上下文传递给修复器
const TraceParentEnv = "TRACEPARENT"

var (
	mu            sync.Mutex
	tracer        trace.Tracer = noop.NewTracerProvider().Tracer("noop")
	shutdownFuncs []func(context.Context) error
	enabled       bool
)

// Init initializes tracing from cfg. When tracing is disabled or the exporter
// cannot be built, a noop tracer is installed and the error (if any) is returned.
// Init 根据 cfg 初始化追踪。禁用追踪或无法创建导出器时安装空操作追踪器，并返回错误（如有）。
func Init(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Enabled {
		log.Debug("[Trace] OpenTelemetry tracing is disabled / OpenTelemetry 追踪已禁用")
		useNoop()
		return nil
	}

	otel.SetTextMapPropagator(newPropagator())

	exporter, closeFn, err := newExporter(ctx, cfg)
	if err != nil {
		log.Warn("[Trace] Failed to init exporter, using noop tracer / 初始化导出器失败，使用空操作追踪器", zap.Error(err))
		useNoop()
		return err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(provider)

	shutdownFuncs = append(shutdownFuncs, provider.Shutdown)
	if closeFn != nil {
		shutdownFuncs = append(shutdownFuncs, closeFn)
	}
	tracer = provider.Tracer(instrumentationName)
	enabled = true
	log.Debug("[Trace] OpenTelemetry tracing initialized / OpenTelemetry 追踪已初始化", zap.String("exporter", cfg.Exporter))
	return nil
}

func useNoop() {
	tracer = noop.NewTracerProvider().Tracer("noop")
	enabled = false
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// newExporter builds the span exporter named by cfg.Exporter. The returned close
// function releases the span file, if one was opened.
// newExporter 构建 cfg.Exporter 指定的 span 导出器，返回的关闭函数释放打开的 span 文件。
func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, func(context.Context) error, error) {
	switch cfg.Exporter {
	case "", "stdout":
		var w io.Writer = os.Stderr
		var closeFn func(context.Context) error
		if cfg.File != "" {
			f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, nil, fmt.Errorf("open span file: %w", err)
			}
			w = f
			closeFn = func(context.Context) error { return f.Close() }
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			if closeFn != nil {
				_ = closeFn(ctx)
			}
			return nil, nil, err
		}
		return exp, closeFn, nil
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		return exp, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// IsEnabled returns whether tracing is enabled.
// IsEnabled 返回追踪是否已启用。
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Start starts a span with the installed tracer
// Start 使用已安装的追踪器开始一个 span
func Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.Lock()
	t := tracer
	mu.Unlock()
	return t.Start(ctx, name, opts...)
}

// ContextFromEnv returns ctx carrying the remote span context found in TRACEPARENT, if any
// ContextFromEnv 返回携带 TRACEPARENT 中远程 span 上下文（如有）的 ctx
func ContextFromEnv(ctx context.Context) context.Context {
	parent := os.Getenv(TraceParentEnv)
	if parent == "" {
		return ctx
	}
	return newPropagator().Extract(ctx, propagation.MapCarrier{"traceparent": parent})
}

// Shutdown flushes pending spans and restores the noop tracer
// Shutdown 刷新待发送的 span 并恢复空操作追踪器
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	var firstErr error
	for _, fn := range shutdownFuncs {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	shutdownFuncs = nil
	useNoop()
	return firstErr
}
