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

package remediation

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seatunnel/remediator/internal/config"
	"github.com/seatunnel/remediator/internal/process"
)

// terminate sends SIGTERM to pids, waits for them to leave the process table and
// escalates to SIGKILL when enabled. A process that is already gone counts as terminated.
// terminate 向 pids 发送 SIGTERM 并等待其离开进程表，启用时升级为 SIGKILL。已经消失的进程视为已终止。
func (r *Remediator) terminate(ctx context.Context, pids []int) (escalated bool, err error) {
	log := r.log.Ctx(ctx)

	// Check every target before signalling any, so a refusal leaves all of them untouched
	// 在发送任何信号前检查所有目标，被拒绝时所有目标都保持原状
	for _, pid := range pids {
		if err := r.probe(pid); err != nil && !errors.Is(err, process.ErrProcessNotFound) {
			return false, fmt.Errorf("%w: %v", ErrSignalRejected, err)
		}
	}

	// Send SIGTERM to all processes / 向所有进程发送 SIGTERM
	for _, pid := range pids {
		if err := r.signal(pid, syscall.SIGTERM); err != nil {
			if errors.Is(err, process.ErrProcessNotFound) {
				log.Debug("Process already gone / 进程已退出", zap.Int("pid", pid))
				continue
			}
			return false, fmt.Errorf("%w: %v", ErrSignalRejected, err)
		}
		log.Debug("Sent SIGTERM / 已发送 SIGTERM", zap.Int("pid", pid))
	}

	// Wait for processes to exit gracefully / 等待进程优雅退出
	remaining := r.waitGone(ctx, pids, r.config.GracefulTimeout)
	if len(remaining) == 0 {
		return false, nil
	}
	if !r.config.ForceKill || ctx.Err() != nil {
		return false, fmt.Errorf("%w: pids %v still present after %v", ErrVerificationTimeout, remaining, r.config.GracefulTimeout)
	}

	// Force kill any remaining processes / 强制杀死任何剩余的进程
	log.Warn("Graceful termination timed out, sending SIGKILL / 优雅终止超时，发送 SIGKILL",
		zap.Ints("pids", remaining), zap.Duration("timeout", r.config.GracefulTimeout))
	for _, pid := range remaining {
		if err := r.signal(pid, syscall.SIGKILL); err != nil && !errors.Is(err, process.ErrProcessNotFound) {
			log.Warn("SIGKILL failed / SIGKILL 发送失败", zap.Int("pid", pid), zap.Error(err))
		}
	}

	remaining = r.waitGone(ctx, remaining, r.config.KillTimeout)
	if len(remaining) > 0 {
		return true, fmt.Errorf("%w: pids %v still present after SIGKILL", ErrVerificationTimeout, remaining)
	}
	return true, nil
}

// waitGone polls until none of pids is alive, the timeout expires or ctx is done.
// It returns the PIDs still alive at the final check.
// waitGone 轮询直到 pids 全部退出、超时或 ctx 结束，返回最后一次检查时仍存活的 PID。
func (r *Remediator) waitGone(ctx context.Context, pids []int, timeout time.Duration) []int {
	remaining := r.alive(pids)
	if len(remaining) == 0 {
		return nil
	}

	interval := r.config.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.alive(remaining)
		case <-deadline.C:
			return r.alive(remaining)
		case <-ticker.C:
			remaining = r.alive(remaining)
			if len(remaining) == 0 {
				return nil
			}
		}
	}
}

func (r *Remediator) alive(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if r.isAlive(pid) {
			out = append(out, pid)
		}
	}
	return out
}
