//go:build windows
// +build windows

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
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

func setProcGroupAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// sendSignal can only terminate on Windows; both SIGTERM and SIGKILL kill the process
// sendSignal 在 Windows 上只能终止进程；SIGTERM 和 SIGKILL 都会杀死进程
func sendSignal(pid int, sig syscall.Signal) error {
	if !signalExists(pid) {
		return ErrProcessNotFound
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if sig == syscall.SIGKILL || sig == syscall.SIGTERM {
		return proc.Kill()
	}
	return nil
}

// signalExists uses tasklist to check if a process exists
// signalExists 使用 tasklist 检查进程是否存在
func signalExists(pid int) bool {
	cmd := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(output), strconv.Itoa(pid))
}

// probeSignal only checks existence; Windows has no dry-run kill
// probeSignal 仅检查进程是否存在，Windows 没有试发送的终止方式
func probeSignal(pid int) error {
	if !signalExists(pid) {
		return fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	}
	return nil
}

func isZombie(pid int) bool {
	return false
}

func classifySignalError(pid int, sig syscall.Signal, err error) error {
	switch {
	case err == nil:
		return nil
	case err == ErrProcessNotFound:
		return fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %s to pid %d", ErrPermission, sig, pid)
	default:
		return fmt.Errorf("send %s to pid %d: %w", sig, pid, err)
	}
}

func listProcesses() ([]Info, error) {
	return nil, ErrUnsupportedPlatform
}

func lookupProcess(pid int) (Info, error) {
	if !signalExists(pid) {
		return Info{}, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	}
	return Info{PID: pid}, nil
}

func captureLaunchSpec(pid int) (*LaunchSpec, error) {
	return nil, fmt.Errorf("%w: %v", ErrLaunchSpecUnavailable, ErrUnsupportedPlatform)
}
