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

// Package lock provides advisory per-target file locks so that two remediator
// invocations never act on the same process at the same time.
// lock 包提供基于文件的按目标建议锁，确保两个修复器调用不会同时操作同一个进程。
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrBusy indicates another holder owns the lock
// ErrBusy 表示锁已被其他持有者占用
var ErrBusy = errors.New("lock held by another invocation")

// Locker hands out locks stored under a directory
// Locker 分配存放在某个目录下的锁
type Locker struct {
	dir string
}

// NewLocker creates a Locker rooted at dir
// NewLocker 创建以 dir 为根目录的 Locker
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir}
}

// Set is a group of held locks released together
// Set 是一组一起释放的已持有锁
type Set struct {
	locks []*flock.Flock
}

// Keys returns the lock file paths held by s
// Keys 返回 s 持有的锁文件路径
func (s *Set) Keys() []string {
	paths := make([]string, 0, len(s.locks))
	for _, l := range s.locks {
		paths = append(paths, l.Path())
	}
	return paths
}

// Release unlocks every lock in the set. Lock files are left in place for Prune.
// Release 释放集合中的所有锁，锁文件保留，由 Prune 清理。
func (s *Set) Release() error {
	var firstErr error
	for _, l := range s.locks {
		if err := l.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.locks = nil
	return firstErr
}

// AcquirePIDs try-locks every PID. Either all locks are taken or none are held
// on return; a lock already held elsewhere yields ErrBusy.
// AcquirePIDs 尝试锁定每个 PID。返回时要么全部持有，要么全部未持有；锁被其他地方持有时返回 ErrBusy。
func (l *Locker) AcquirePIDs(pids []int) (*Set, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	sorted := append([]int(nil), pids...)
	sort.Ints(sorted)

	set := &Set{}
	for _, pid := range sorted {
		fl := flock.New(l.pathFor(pid))
		locked, err := fl.TryLock()
		if err != nil {
			_ = set.Release()
			return nil, fmt.Errorf("lock pid %d: %w", pid, err)
		}
		if !locked {
			_ = set.Release()
			return nil, fmt.Errorf("%w: pid %d", ErrBusy, pid)
		}
		set.locks = append(set.locks, fl)
	}
	return set, nil
}

// Prune removes the lock files of PIDs that are no longer alive. A file is only
// removed while this call holds its lock, so files held elsewhere are skipped.
// Prune 删除已不存活的 PID 的锁文件。只有在本调用持有锁时才会删除文件，被其他地方持有的文件会被跳过。
func (l *Locker) Prune(alive func(pid int) bool) (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read lock dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		pid, ok := pidOf(entry.Name())
		if !ok || alive(pid) {
			continue
		}
		fl := flock.New(l.pathFor(pid))
		locked, err := fl.TryLock()
		if err != nil || !locked {
			continue
		}
		if err := os.Remove(fl.Path()); err == nil {
			removed++
		}
		_ = fl.Unlock()
	}
	return removed, nil
}

func (l *Locker) pathFor(pid int) string {
	return filepath.Join(l.dir, "pid-"+strconv.Itoa(pid)+".lock")
}

func pidOf(name string) (int, bool) {
	if !strings.HasPrefix(name, "pid-") || !strings.HasSuffix(name, ".lock") {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "pid-"), ".lock"))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
