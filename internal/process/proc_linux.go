//go:build linux
// +build linux

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
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// procRoot is the mount point of procfs
// procRoot 是 procfs 的挂载点
var procRoot = "/proc"

func procPath(pid int, name string) string {
	return filepath.Join(procRoot, strconv.Itoa(pid), name)
}

// readStat parses /proc/[pid]/stat and returns the state letter and the parent PID.
// The comm field may contain spaces and parentheses, so parsing starts after the last ')'.
// readStat 解析 /proc/[pid]/stat，返回状态字母和父进程 PID。
// comm 字段可能包含空格和括号，因此从最后一个 ')' 之后开始解析。
func readStat(pid int) (state byte, ppid int, err error) {
	data, err := os.ReadFile(procPath(pid, "stat"))
	if err != nil {
		return 0, 0, err
	}
	end := bytes.LastIndexByte(data, ')')
	if end < 0 || end+2 >= len(data) {
		return 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(string(data[end+1:]))
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	ppid, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse ppid for pid %d: %w", pid, err)
	}
	return fields[0][0], ppid, nil
}

// isZombie reports whether pid is a zombie or already dead. A vanished /proc entry counts as dead.
// isZombie 判断 pid 是否为僵尸或已死亡，/proc 条目消失也视为已死亡。
func isZombie(pid int) bool {
	state, _, err := readStat(pid)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return state == 'Z' || state == 'X' || state == 'x'
}

// splitNul splits a NUL separated /proc buffer, dropping the trailing empty element
// splitNul 拆分以 NUL 分隔的 /proc 缓冲区，丢弃末尾的空元素
func splitNul(data []byte) []string {
	data = bytes.TrimRight(data, "\x00")
	if len(data) == 0 {
		return nil
	}
	parts := bytes.Split(data, []byte{0})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, string(p))
	}
	return out
}

func lookupProcess(pid int) (Info, error) {
	if pid <= 0 {
		return Info{}, fmt.Errorf("%w: invalid pid %d", ErrProcessNotFound, pid)
	}
	_, ppid, err := readStat(pid)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
		}
		return Info{}, err
	}

	info := Info{PID: pid, PPID: ppid}
	if comm, err := os.ReadFile(procPath(pid, "comm")); err == nil {
		info.Name = strings.TrimSpace(string(comm))
	}
	if cmdline, err := os.ReadFile(procPath(pid, "cmdline")); err == nil {
		info.Cmdline = splitNul(cmdline)
	}
	return info, nil
}

func listProcesses() ([]Info, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", procRoot, err)
	}

	procs := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		info, err := lookupProcess(pid)
		if err != nil {
			// Process exited while scanning / 扫描期间进程已退出
			continue
		}
		procs = append(procs, info)
	}
	return procs, nil
}

func captureLaunchSpec(pid int) (*LaunchSpec, error) {
	cmdline, err := os.ReadFile(procPath(pid, "cmdline"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
		}
		return nil, fmt.Errorf("%w: %v", ErrLaunchSpecUnavailable, err)
	}
	args := splitNul(cmdline)
	if len(args) == 0 {
		// Kernel threads and zombies have no command line
		// 内核线程和僵尸进程没有命令行
		return nil, fmt.Errorf("%w: pid %d has no command line", ErrLaunchSpecUnavailable, pid)
	}

	spec := &LaunchSpec{Args: args}

	if exe, err := os.Readlink(procPath(pid, "exe")); err == nil && !strings.HasSuffix(exe, " (deleted)") {
		spec.Path = exe
	} else if path, lookErr := exec.LookPath(args[0]); lookErr == nil {
		spec.Path = path
	} else {
		return nil, fmt.Errorf("%w: cannot resolve executable of pid %d", ErrLaunchSpecUnavailable, pid)
	}

	if cwd, err := os.Readlink(procPath(pid, "cwd")); err == nil {
		spec.Dir = cwd
	}
	if environ, err := os.ReadFile(procPath(pid, "environ")); err == nil {
		spec.Env = splitNul(environ)
	}

	return spec, nil
}
