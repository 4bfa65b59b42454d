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

// Package logger builds the zap loggers used by the remediator.
// logger 包构建修复器使用的 zap 日志记录器。
//
// Diagnostics always go to the side stream (stderr) with a console encoder.
// When a log file is configured a second JSON core writes to a rotated file.
// 诊断信息始终以控制台格式写入旁路流（stderr）；配置日志文件时，另一个 JSON 核心写入轮转文件。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/seatunnel/remediator/internal/config"
)

// ParseLevel converts a configured level name to a zap level
// ParseLevel 将配置的级别名称转换为 zap 级别
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// New creates a logger writing to side (os.Stderr when nil) and, if cfg.File is set,
// to a lumberjack-rotated JSON file. The returned function closes the file.
// New 创建写入 side（为 nil 时为 os.Stderr）的日志记录器；若设置了 cfg.File，
// 同时写入 lumberjack 轮转的 JSON 文件。返回的函数用于关闭文件。
func New(cfg config.LogConfig, side io.Writer) (*zap.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if side == nil {
		side = os.Stderr
	}

	consoleEncoding := zap.NewDevelopmentEncoderConfig()
	consoleEncoding.EncodeLevel = zapcore.CapitalLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoding), zapcore.AddSync(side), level),
	}

	cleanup := func() {}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		fileEncoding := zap.NewProductionEncoderConfig()
		fileEncoding.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoding), zapcore.AddSync(rotator), level))
		cleanup = func() { _ = rotator.Close() }
	}

	return zap.New(zapcore.NewTee(cores...)), cleanup, nil
}

// WithTrace wraps l so entries logged with a context are correlated with its span
// WithTrace 包装 l，使携带上下文记录的日志与其 span 关联
func WithTrace(l *zap.Logger) *otelzap.Logger {
	return otelzap.New(l, otelzap.WithMinLevel(l.Level()))
}

// Nop returns a trace-aware logger that discards everything
// Nop 返回丢弃所有输出的带追踪日志记录器
func Nop() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}
