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

// Package process provides the host process-control primitives used by the remediator.
// process 包提供修复器使用的主机进程控制原语。
//
// This package provides:
// 此包提供：
// - Liveness checks that treat zombies as gone / 将僵尸进程视为已退出的存活检查
// - Signal delivery with classified errors / 带错误分类的信号发送
// - Process table listing / 进程表列举
// - Launch spec capture and detached launching / 启动规格捕获与独立启动
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Common errors for process control
// 进程控制的常见错误
var (
	// ErrProcessNotFound indicates the process does not exist
	// ErrProcessNotFound 表示进程不存在
	ErrProcessNotFound = errors.New("process not found")

	// ErrPermission indicates the OS refused the operation
	// ErrPermission 表示操作系统拒绝了该操作
	ErrPermission = errors.New("operation not permitted")

	// ErrLaunchSpecUnavailable indicates the launch spec of a process cannot be read
	// ErrLaunchSpecUnavailable 表示无法读取进程的启动规格
	ErrLaunchSpecUnavailable = errors.New("launch spec unavailable")

	// ErrUnsupportedPlatform indicates the operation is not implemented on this OS
	// ErrUnsupportedPlatform 表示当前操作系统不支持该操作
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Info describes a process found in the process table
// Info 描述进程表中的一个进程
type Info struct {
	// PID is the process ID
	// PID 是进程 ID
	PID int `json:"pid"`

	// PPID is the parent process ID
	// PPID 是父进程 ID
	PPID int `json:"ppid"`

	// Name is the short process name (comm)
	// Name 是进程短名称（comm）
	Name string `json:"name"`

	// Cmdline is the argument vector, argv[0] included
	// Cmdline 是参数向量，包含 argv[0]
	Cmdline []string `json:"cmdline,omitempty"`
}

// CommandLine returns the command line joined by spaces
// CommandLine 返回以空格连接的命令行
func (i Info) CommandLine() string {
	return strings.Join(i.Cmdline, " ")
}

// LaunchSpec is everything needed to start a process again
// LaunchSpec 是重新启动进程所需的全部信息
type LaunchSpec struct {
	// Path is the executable to run
	// Path 是要运行的可执行文件
	Path string `json:"path" yaml:"path"`

	// Args is the full argument vector, argv[0] included
	// Args 是完整的参数向量，包含 argv[0]
	Args []string `json:"args" yaml:"args"`

	// Dir is the working directory (empty means the caller's)
	// Dir 是工作目录（为空表示调用方的目录）
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Env is the environment in KEY=VALUE form (empty means the caller's)
	// Env 是 KEY=VALUE 形式的环境变量（为空表示调用方的环境）
	Env []string `json:"-" yaml:"-"`
}

// Validate checks that the spec can be executed
// Validate 检查启动规格是否可执行
func (s *LaunchSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil spec", ErrLaunchSpecUnavailable)
	}
	if s.Path == "" {
		return fmt.Errorf("%w: empty executable path", ErrLaunchSpecUnavailable)
	}
	return nil
}

// String returns a short human readable form
// String 返回简短的可读形式
func (s *LaunchSpec) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %v (dir=%q)", s.Path, s.Args, s.Dir)
}

// SpecFromCommand builds a spec from a command and its arguments, resolving the
// executable through PATH.
// SpecFromCommand 根据命令及参数构建启动规格，通过 PATH 解析可执行文件。
func SpecFromCommand(command []string) (*LaunchSpec, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrLaunchSpecUnavailable)
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunchSpecUnavailable, err)
	}
	args := make([]string, len(command))
	copy(args, command)
	return &LaunchSpec{Path: path, Args: args}, nil
}

// IsAlive checks if a process with the given PID is alive. Zombies are reported as dead.
// IsAlive 检查给定 PID 的进程是否存活，僵尸进程视为已退出。
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if !signalExists(pid) {
		return false
	}
	return !isZombie(pid)
}

// Signal sends sig to the process. ESRCH maps to ErrProcessNotFound and EPERM to ErrPermission.
// Signal 向进程发送信号。ESRCH 映射为 ErrProcessNotFound，EPERM 映射为 ErrPermission。
func Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrProcessNotFound, pid)
	}
	return classifySignalError(pid, sig, sendSignal(pid, sig))
}

// CanSignal checks, without delivering anything, whether a signal to pid would be
// accepted. It fails with ErrProcessNotFound or ErrPermission like Signal does.
// CanSignal 在不发送信号的情况下检查发往 pid 的信号是否会被接受，失败时与 Signal 一样返回 ErrProcessNotFound 或 ErrPermission。
func CanSignal(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrProcessNotFound, pid)
	}
	return probeSignal(pid)
}

// Launch starts spec in its own process group with stdio redirected to output
// (the null device when output is nil). The caller owns the returned command and must Wait on it.
// Launch 在独立进程组中启动 spec，标准输入输出重定向到 output（为 nil 时为空设备）。
// 调用方拥有返回的命令并且必须对其调用 Wait。
func Launch(spec *LaunchSpec, output io.Writer) (*exec.Cmd, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	args := spec.Args
	if len(args) == 0 {
		args = []string{spec.Path}
	}

	cmd := &exec.Cmd{
		Path: spec.Path,
		Args: args,
		Dir:  spec.Dir,
	}
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	} else {
		cmd.Env = os.Environ()
	}
	if output != nil {
		cmd.Stdout = output
		cmd.Stderr = output
	}

	// Detach from our process group so the relaunched process outlives us
	// 脱离当前进程组，使重启的进程在修复器退出后继续运行
	setProcGroupAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", filepath.Base(spec.Path), err)
	}
	return cmd, nil
}
