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

// Package discovery resolves remediation targets to live processes.
// discovery 包将修复目标解析为存活的进程。
//
// A target is either a numeric PID or a regular expression matched against the
// process name and its full command line.
// 目标可以是数字 PID，也可以是与进程名称及完整命令行匹配的正则表达式。
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/seatunnel/remediator/internal/process"
)

var (
	// ErrNoMatch indicates no live process matched the target
	// ErrNoMatch 表示没有存活进程匹配目标
	ErrNoMatch = errors.New("no matching process")

	// ErrInvalidPattern indicates the name pattern is not a valid regular expression
	// ErrInvalidPattern 表示名称模式不是合法的正则表达式
	ErrInvalidPattern = errors.New("invalid process pattern")
)

// ListFunc lists the process table
// ListFunc 列举进程表
type ListFunc func(ctx context.Context) ([]process.Info, error)

// ProcessScanner finds live processes on the local machine
// ProcessScanner 查找本机上的存活进程
type ProcessScanner struct {
	list    ListFunc
	isAlive func(pid int) bool
	exclude map[int]struct{}
}

// NewProcessScanner creates a scanner over the real process table. The current
// process and every one of its ancestors are never returned: shells, sudo and
// cron wrappers above us often carry the pattern in their own command line.
// NewProcessScanner 创建基于真实进程表的扫描器。当前进程及其所有祖先进程永远不会被返回：
// 上层的 shell、sudo 与 cron 包装进程的命令行中常常带有该模式。
func NewProcessScanner() *ProcessScanner {
	return newProcessScanner(process.List, process.IsAlive, os.Getpid(), os.Getppid())
}

func newProcessScanner(list ListFunc, isAlive func(int) bool, excluded ...int) *ProcessScanner {
	s := &ProcessScanner{
		list:    list,
		isAlive: isAlive,
		exclude: make(map[int]struct{}, len(excluded)),
	}
	for _, pid := range excluded {
		if pid > 0 {
			s.exclude[pid] = struct{}{}
		}
	}
	return s
}

// CompilePattern compiles a name pattern
// CompilePattern 编译名称模式
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// ResolvePID returns the process with the given PID if it is alive
// ResolvePID 如果给定 PID 的进程存活则返回该进程
func (s *ProcessScanner) ResolvePID(pid int) (process.Info, error) {
	if pid <= 0 || !s.isAlive(pid) {
		return process.Info{}, fmt.Errorf("%w: pid %d", ErrNoMatch, pid)
	}
	info, err := process.Lookup(pid)
	if err != nil {
		if errors.Is(err, process.ErrProcessNotFound) {
			return process.Info{}, fmt.Errorf("%w: pid %d", ErrNoMatch, pid)
		}
		// Alive but unreadable, act on the bare PID / 存活但不可读，仅按 PID 处理
		return process.Info{PID: pid}, nil
	}
	return info, nil
}

// ScanProcesses returns the live processes matching pattern, sorted by PID
// ScanProcesses 返回匹配模式的存活进程，按 PID 排序
func (s *ProcessScanner) ScanProcesses(ctx context.Context, pattern string) ([]process.Info, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	procs, err := s.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan processes: %w", err)
	}

	skip := s.lineage(procs)
	var matched []process.Info
	for _, p := range procs {
		if _, excluded := skip[p.PID]; excluded {
			continue
		}
		if !s.Matches(re, p) {
			continue
		}
		if !s.isAlive(p.PID) {
			continue
		}
		matched = append(matched, p)
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: pattern %q", ErrNoMatch, pattern)
	}
	return matched, nil
}

// lineage returns the excluded PIDs together with all their ancestors in procs
// lineage 返回被排除的 PID 及其在 procs 中的全部祖先
func (s *ProcessScanner) lineage(procs []process.Info) map[int]struct{} {
	parent := make(map[int]int, len(procs))
	for _, p := range procs {
		parent[p.PID] = p.PPID
	}

	skip := make(map[int]struct{}, len(s.exclude))
	for pid := range s.exclude {
		// Walk up until init or an unknown parent / 向上遍历直到 init 或未知的父进程
		for pid > 0 {
			if _, seen := skip[pid]; seen {
				break
			}
			skip[pid] = struct{}{}
			ppid, ok := parent[pid]
			if !ok || pid == 1 {
				break
			}
			pid = ppid
		}
	}
	return skip
}

// Matches checks if a process name or command line matches re
// Matches 检查进程名称或命令行是否匹配 re
func (s *ProcessScanner) Matches(re *regexp.Regexp, p process.Info) bool {
	if p.Name != "" && re.MatchString(p.Name) {
		return true
	}
	cmdline := p.CommandLine()
	return cmdline != "" && re.MatchString(cmdline)
}
