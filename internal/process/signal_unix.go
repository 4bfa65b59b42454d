//go:build !windows
// +build !windows

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

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// setProcGroupAttr puts the child in its own process group
// setProcGroupAttr 将子进程放入独立的进程组
// So when the remediator exits, the relaunched process is not affected
// 这样当修复器退出时，重启的进程不会受影响
func setProcGroupAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Create new process group / 创建新进程组
	}
}

func sendSignal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// signalExists probes the PID with signal 0. EPERM still means the process exists.
// signalExists 使用信号 0 探测 PID，EPERM 也表示进程存在。
func signalExists(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func probeSignal(pid int) error {
	err := syscall.Kill(pid, syscall.Signal(0))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	case errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: pid %d", ErrPermission, pid)
	default:
		return fmt.Errorf("probe pid %d: %w", pid, err)
	}
}

func classifySignalError(pid int, sig syscall.Signal, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	case errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %s to pid %d", ErrPermission, sig, pid)
	default:
		return fmt.Errorf("send %s to pid %d: %w", sig, pid, err)
	}
}
