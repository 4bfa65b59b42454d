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

// Package remediation applies kill and restart actions to local processes and
// verifies the resulting state before reporting an outcome.
// remediation 包对本机进程执行终止与重启动作，并在报告结果前验证最终状态。
//
// Every run follows the same sequence:
// 每次运行遵循相同的流程：
// - Resolve the target to live processes / 将目标解析为存活进程
// - Lock the resolved PIDs / 锁定解析出的 PID
// - Act (SIGTERM, then SIGKILL after the graceful timeout) / 执行动作（先 SIGTERM，优雅超时后 SIGKILL）
// - Verify absence or a settled relaunch / 验证进程已消失或重启后已稳定
package remediation

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seatunnel/remediator/internal/config"
	"github.com/seatunnel/remediator/internal/discovery"
	"github.com/seatunnel/remediator/internal/lock"
	"github.com/seatunnel/remediator/internal/process"
	"github.com/seatunnel/remediator/internal/restart"
	"github.com/seatunnel/remediator/internal/telemetry"
)

// Config holds the remediation timing and escalation settings
// Config 保存修复的时间与升级设置
type Config struct {
	GracefulTimeout time.Duration // SIGTERM 后等待时长 / Wait after SIGTERM
	KillTimeout     time.Duration // SIGKILL 后等待时长 / Wait after SIGKILL
	PollInterval    time.Duration // 轮询间隔 / Poll interval
	ForceKill       bool          // 是否升级为 SIGKILL / Escalate to SIGKILL
	LockDir         string        // 锁目录 / Lock directory
	Restart         restart.RestartConfig
}

// DefaultConfig returns the default remediation configuration
// DefaultConfig 返回默认修复配置
func DefaultConfig() Config {
	return Config{
		GracefulTimeout: config.DefaultGracefulTimeout,
		KillTimeout:     config.DefaultKillTimeout,
		PollInterval:    config.DefaultPollInterval,
		ForceKill:       true,
		LockDir:         config.DefaultLockDir(),
		Restart:         *restart.DefaultRestartConfig(),
	}
}

// ConfigFrom extracts the remediation settings from the loaded configuration
// ConfigFrom 从已加载的配置中提取修复设置
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		GracefulTimeout: cfg.Remediation.GracefulTimeout,
		KillTimeout:     cfg.Remediation.KillTimeout,
		PollInterval:    cfg.Remediation.PollInterval,
		ForceKill:       cfg.Remediation.ForceKill,
		LockDir:         cfg.Remediation.LockDir,
		Restart: restart.RestartConfig{
			Timeout:      cfg.Restart.Timeout,
			SettlePeriod: cfg.Restart.SettlePeriod,
			PollInterval: cfg.Remediation.PollInterval,
			OutputFile:   cfg.Restart.OutputFile,
		},
	}
}

// Resolver turns a target into live processes
// Resolver 将目标转换为存活进程
type Resolver interface {
	ResolvePID(pid int) (process.Info, error)
	ScanProcesses(ctx context.Context, pattern string) ([]process.Info, error)
}

// Relauncher starts a process again and waits for it to settle
// Relauncher 重新启动进程并等待其稳定
type Relauncher interface {
	Relaunch(ctx context.Context, spec *process.LaunchSpec) (*restart.Relaunched, error)
	WaitRunning(ctx context.Context, rl *restart.Relaunched) error
}

// Remediator executes remediation actions. It holds no mutable state and is safe
// for concurrent use on distinct targets.
// Remediator 执行修复动作。它不持有可变状态，可在不同目标上并发使用。
type Remediator struct {
	config     Config
	log        *otelzap.Logger
	resolver   Resolver
	relauncher Relauncher
	locker     *lock.Locker

	signal   func(pid int, sig syscall.Signal) error
	probe    func(pid int) error
	isAlive  func(pid int) bool
	capture  func(pid int) (*process.LaunchSpec, error)
	newRunID func() string
}

// New creates a Remediator acting on the local process table
// New 创建操作本机进程表的 Remediator
func New(cfg Config, log *otelzap.Logger) *Remediator {
	if log == nil {
		log = otelzap.New(zap.NewNop())
	}
	restartCfg := cfg.Restart
	if restartCfg.Timeout <= 0 {
		restartCfg.Timeout = restart.DefaultRestartTimeout
	}
	return &Remediator{
		config:     cfg,
		log:        log,
		resolver:   discovery.NewProcessScanner(),
		relauncher: restart.NewRelauncher(&restartCfg),
		locker:     lock.NewLocker(cfg.LockDir),
		signal:     process.Signal,
		probe:      process.CanSignal,
		isAlive:    process.IsAlive,
		capture:    process.CaptureLaunchSpec,
		newRunID:   uuid.NewString,
	}
}

// Remediate applies action to target and returns the verified outcome. It never
// panics and never returns an error: every failure is folded into the outcome.
// Remediate 对目标执行动作并返回经过验证的结果。它不会 panic 也不返回错误，所有失败都体现在结果中。
func (r *Remediator) Remediate(ctx context.Context, target Target, action Action) Outcome {
	return r.Run(ctx, target, action).Outcome
}

// Run is Remediate with the full diagnostic report
// Run 是返回完整诊断报告的 Remediate
func (r *Remediator) Run(ctx context.Context, target Target, action Action) Report {
	report := Report{
		RunID:  r.newRunID(),
		Action: action,
		Target: target,
	}
	start := time.Now()

	ctx, span := telemetry.Start(ctx, "remediation."+string(action), trace.WithAttributes(
		attribute.String("remediation.run_id", report.RunID),
		attribute.String("remediation.target", target.String()),
	))
	defer span.End()

	log := r.log.Ctx(ctx)
	log.Info("Remediation started / 修复开始",
		zap.String("run_id", report.RunID),
		zap.String("action", string(action)),
		zap.Stringer("target", target))

	switch action {
	case ActionKill, ActionRestart:
		r.execute(ctx, &report)
	default:
		report.Err = fmt.Errorf("%w: unknown action %q", ErrInvalidTarget, action)
		report.Outcome = failed(false, report.Err.Error())
	}
	report.Duration = time.Since(start)

	// passed is only ever reported for a verified run / 只有经过验证的运行才会报告 passed
	if report.Outcome.Passed && !report.Verified {
		report.Outcome.Passed = false
	}

	span.SetAttributes(
		attribute.IntSlice("remediation.pids", report.PIDs),
		attribute.IntSlice("remediation.new_pids", report.NewPIDs),
		attribute.Bool("remediation.escalated", report.Escalated),
		attribute.Bool("remediation.success", report.Outcome.Success),
		attribute.Bool("remediation.passed", report.Outcome.Passed),
		attribute.String("remediation.result", report.Outcome.Result),
	)
	if report.Err != nil {
		span.RecordError(report.Err)
		span.SetStatus(codes.Error, report.Outcome.Result)
	}

	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.String("action", string(action)),
		zap.Ints("pids", report.PIDs),
		zap.Ints("new_pids", report.NewPIDs),
		zap.Bool("escalated", report.Escalated),
		zap.Bool("success", report.Outcome.Success),
		zap.Bool("passed", report.Outcome.Passed),
		zap.Duration("duration", report.Duration),
	}
	if report.Err != nil {
		log.Warn("Remediation failed / 修复失败", append(fields, zap.Error(report.Err))...)
	} else {
		log.Info("Remediation finished / 修复完成", fields...)
	}
	return report
}

// execute runs a validated action against target
// execute 对目标执行已校验的动作
func (r *Remediator) execute(ctx context.Context, report *Report) {
	if err := report.Target.Validate(); err != nil {
		report.Err = err
		report.Outcome = failed(false, err.Error())
		return
	}

	infos, err := r.resolve(ctx, report.Target)
	if err != nil {
		report.Err = err
		switch {
		case errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrScanFailed):
			report.Outcome = failed(false, err.Error())
		default:
			report.Outcome = failed(false, resultNotFound)
		}
		return
	}
	for _, info := range infos {
		report.PIDs = append(report.PIDs, info.PID)
	}

	held, err := r.locker.AcquirePIDs(report.PIDs)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			report.Err = fmt.Errorf("%w: %v", ErrTargetBusy, err)
			report.Outcome = failed(false, resultBusy)
		} else {
			report.Err = err
			report.Outcome = failedWith(false, resultLockUnavailable, err)
		}
		return
	}
	defer func() {
		if err := held.Release(); err != nil {
			r.log.Ctx(ctx).Warn("Failed to release target lock / 释放目标锁失败", zap.Error(err))
		}
		if n, err := r.locker.Prune(r.isAlive); err != nil {
			r.log.Ctx(ctx).Warn("Failed to prune lock files / 清理锁文件失败", zap.Error(err))
		} else if n > 0 {
			r.log.Ctx(ctx).Debug("Pruned stale lock files / 已清理过期锁文件", zap.Int("count", n))
		}
	}()

	if report.Action == ActionKill {
		r.kill(ctx, report)
		return
	}
	r.restartTargets(ctx, report)
}

// resolve maps the target to live processes
// resolve 将目标映射为存活进程
func (r *Remediator) resolve(ctx context.Context, target Target) ([]process.Info, error) {
	if target.Pattern == "" {
		info, err := r.resolver.ResolvePID(target.PID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
		}
		return []process.Info{info}, nil
	}

	infos, err := r.resolver.ScanProcesses(ctx, target.Pattern)
	if err != nil {
		switch {
		case errors.Is(err, discovery.ErrInvalidPattern):
			return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		case errors.Is(err, discovery.ErrNoMatch):
			return nil, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
		default:
			// The process table itself could not be read / 进程表本身无法读取
			return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
		}
	}
	return infos, nil
}

// kill terminates every resolved process and verifies absence
// kill 终止所有解析出的进程并验证其已消失
func (r *Remediator) kill(ctx context.Context, report *Report) {
	escalated, err := r.terminate(ctx, report.PIDs)
	report.Escalated = escalated
	if err != nil {
		report.Err = err
		report.Outcome = r.terminateFailure(err)
		return
	}
	report.Verified = true
	report.Outcome = Outcome{Success: true, Passed: true, Result: resultTerminated}
}

// terminateFailure maps a terminate error to an outcome
// terminateFailure 将终止错误映射为结果
func (r *Remediator) terminateFailure(err error) Outcome {
	if errors.Is(err, ErrSignalRejected) {
		return failed(false, err.Error())
	}
	return failed(true, resultStillPresent)
}
