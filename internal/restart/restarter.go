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

// Package restart relaunches terminated processes and verifies they come back.
// restart 包负责重新启动已终止的进程并验证其恢复运行。
//
// This package provides:
// 此包提供：
// - Relaunch from a captured launch spec / 根据捕获的启动规格重新启动
// - Background reaping of relaunched children / 后台回收重启的子进程
// - Bounded wait for a healthy running state / 有界等待进程进入健康运行状态
package restart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/seatunnel/remediator/internal/process"
)

// Default configuration values
// 默认配置值
const (
	DefaultRestartTimeout = 30 * time.Second       // 默认重启验证超时 / Default restart verification timeout
	DefaultSettlePeriod   = 1 * time.Second        // 默认稳定期 / Default settle period
	DefaultPollInterval   = 100 * time.Millisecond // 默认轮询间隔 / Default poll interval
)

var (
	// ErrRelaunchFailed indicates the process could not be started
	// ErrRelaunchFailed 表示进程无法启动
	ErrRelaunchFailed = errors.New("relaunch failed")

	// ErrExited indicates the relaunched process died before it settled
	// ErrExited 表示重启的进程在稳定前退出
	ErrExited = errors.New("relaunched process exited")

	// ErrRunningTimeout indicates the relaunched process did not settle in time
	// ErrRunningTimeout 表示重启的进程未能按时稳定运行
	ErrRunningTimeout = errors.New("relaunched process did not reach running state in time")
)

// RestartConfig holds the relaunch configuration
// RestartConfig 保存重启配置
type RestartConfig struct {
	Timeout      time.Duration `json:"timeout"`       // 验证超时 / Verification timeout
	SettlePeriod time.Duration `json:"settle_period"` // 稳定期 / Settle period
	PollInterval time.Duration `json:"poll_interval"` // 轮询间隔 / Poll interval
	OutputFile   string        `json:"output_file"`   // 输出文件 / Output file for the new process
}

// DefaultRestartConfig returns the default restart configuration
// DefaultRestartConfig 返回默认重启配置
func DefaultRestartConfig() *RestartConfig {
	return &RestartConfig{
		Timeout:      DefaultRestartTimeout,
		SettlePeriod: DefaultSettlePeriod,
		PollInterval: DefaultPollInterval,
	}
}

// Relaunched is a process started by the Relauncher
// Relaunched 是由 Relauncher 启动的进程
type Relaunched struct {
	PID       int
	Spec      *process.LaunchSpec
	StartedAt time.Time

	exited  chan struct{}
	exitErr error
}

// Exited reports whether the process has been reaped
// Exited 返回进程是否已被回收
func (r *Relaunched) Exited() bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

// ExitErr returns the wait error of an exited process
// ExitErr 返回已退出进程的等待错误
func (r *Relaunched) ExitErr() error {
	if !r.Exited() {
		return nil
	}
	return r.exitErr
}

// Relauncher starts processes again from their launch spec
// Relauncher 根据启动规格重新启动进程
type Relauncher struct {
	config  *RestartConfig
	launch  func(spec *process.LaunchSpec, output io.Writer) (*execHandle, error)
	isAlive func(pid int) bool
}

// NewRelauncher creates a new Relauncher instance
// NewRelauncher 创建一个新的 Relauncher 实例
func NewRelauncher(config *RestartConfig) *Relauncher {
	if config == nil {
		config = DefaultRestartConfig()
	}
	return &Relauncher{
		config:  config,
		launch:  launchProcess,
		isAlive: process.IsAlive,
	}
}

// Relaunch starts spec and begins reaping it in the background
// Relaunch 启动 spec 并在后台回收该进程
func (r *Relauncher) Relaunch(ctx context.Context, spec *process.LaunchSpec) (*Relaunched, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelaunchFailed, err)
	}

	var output io.Writer
	if r.config.OutputFile != "" {
		f, err := os.OpenFile(r.config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("%w: open output file: %v", ErrRelaunchFailed, err)
		}
		// The child holds its own descriptor after start / 启动后子进程持有自己的描述符
		defer f.Close()
		output = f
	}

	handle, err := r.launch(spec, output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelaunchFailed, err)
	}

	rl := &Relaunched{
		PID:       handle.pid,
		Spec:      spec,
		StartedAt: time.Now(),
		exited:    make(chan struct{}),
	}
	go func() {
		rl.exitErr = handle.wait()
		close(rl.exited)
	}()
	return rl, nil
}

// WaitRunning waits until rl has been alive for the settle period.
// The wait is bounded by the configured timeout and by ctx.
// WaitRunning 等待 rl 持续存活满稳定期，等待时间受配置的超时和 ctx 限制。
func (r *Relauncher) WaitRunning(ctx context.Context, rl *Relaunched) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	interval := r.config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if rl.Exited() || !r.isAlive(rl.PID) {
			// Give the reaper a moment to record the exit status / 给回收协程片刻以记录退出状态
			select {
			case <-rl.exited:
			case <-time.After(interval):
			}
			if err := rl.ExitErr(); err != nil {
				return fmt.Errorf("%w: pid %d: %v", ErrExited, rl.PID, err)
			}
			return fmt.Errorf("%w: pid %d", ErrExited, rl.PID)
		}
		if time.Since(rl.StartedAt) >= r.config.SettlePeriod {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: pid %d after %v", ErrRunningTimeout, rl.PID, time.Since(rl.StartedAt).Round(time.Millisecond))
		case <-rl.exited:
		case <-ticker.C:
		}
	}
}

// execHandle decouples the relauncher from exec.Cmd for tests
// execHandle 使重启器与 exec.Cmd 解耦以便测试
type execHandle struct {
	pid  int
	wait func() error
}

func launchProcess(spec *process.LaunchSpec, output io.Writer) (*execHandle, error) {
	cmd, err := process.Launch(spec, output)
	if err != nil {
		return nil, err
	}
	return &execHandle{pid: cmd.Process.Pid, wait: cmd.Wait}, nil
}
