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
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/seatunnel/remediator/internal/discovery"
	"github.com/seatunnel/remediator/internal/lock"
	"github.com/seatunnel/remediator/internal/logger"
	"github.com/seatunnel/remediator/internal/process"
	"github.com/seatunnel/remediator/internal/restart"
)

// fakeProc is one entry of the fake process table
// fakeProc 是假进程表中的一个条目
type fakeProc struct {
	alive      bool
	ignoreTerm bool
	ignoreKill bool
	rejectTerm bool
	// termDelay is how many liveness checks the process survives after SIGTERM
	// termDelay 是进程在收到 SIGTERM 后还能通过的存活检查次数
	termDelay int
	termed    bool
}

// fakeHost is an in-memory process table driving a Remediator
// fakeHost 是驱动 Remediator 的内存进程表
type fakeHost struct {
	mu      sync.Mutex
	procs   map[int]*fakeProc
	signals []string
	nextPID int
	listErr error
}

func newFakeHost() *fakeHost {
	return &fakeHost{procs: make(map[int]*fakeProc), nextPID: 5000}
}

func (h *fakeHost) add(pid int, p fakeProc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p.alive = true
	h.procs[pid] = &p
}

func (h *fakeHost) signal(pid int, sig syscall.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.procs[pid]
	if !ok || !p.alive {
		return fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}
	h.signals = append(h.signals, fmt.Sprintf("%d:%s", pid, sigName(sig)))
	switch sig {
	case syscall.SIGTERM:
		if p.rejectTerm {
			return fmt.Errorf("%w: pid %d", process.ErrPermission, pid)
		}
		if !p.ignoreTerm {
			p.termed = true
		}
	case syscall.SIGKILL:
		if !p.ignoreKill {
			p.alive = false
		}
	}
	return nil
}

// probe mirrors kill(pid, 0): it records nothing and reports a refusal up front
// probe 模拟 kill(pid, 0)：不记录任何信号，并提前报告拒绝
func (h *fakeHost) probe(pid int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.procs[pid]
	if !ok || !p.alive {
		return fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}
	if p.rejectTerm {
		return fmt.Errorf("%w: pid %d", process.ErrPermission, pid)
	}
	return nil
}

func sigName(sig syscall.Signal) string {
	if sig == syscall.SIGKILL {
		return "KILL"
	}
	return "TERM"
}

func (h *fakeHost) isAlive(pid int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.procs[pid]
	if !ok || !p.alive {
		return false
	}
	if p.termed {
		if p.termDelay <= 0 {
			p.alive = false
			return false
		}
		p.termDelay--
	}
	return true
}

func (h *fakeHost) sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.signals...)
}

func (h *fakeHost) list(context.Context) ([]process.Info, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var infos []process.Info
	for pid, p := range h.procs {
		if p.alive {
			infos = append(infos, process.Info{PID: pid, Name: "svc", Cmdline: []string{"svc", fmt.Sprint(pid)}})
		}
	}
	return infos, nil
}

func (h *fakeHost) ResolvePID(pid int) (process.Info, error) {
	if pid <= 0 || !h.isAlive(pid) {
		return process.Info{}, fmt.Errorf("%w: pid %d", discovery.ErrNoMatch, pid)
	}
	return process.Info{PID: pid, Name: "svc"}, nil
}

func (h *fakeHost) ScanProcesses(ctx context.Context, pattern string) ([]process.Info, error) {
	re, err := discovery.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if h.listErr != nil {
		return nil, fmt.Errorf("failed to scan processes: %w", h.listErr)
	}
	infos, _ := h.list(ctx)
	var out []process.Info
	for _, info := range infos {
		if re.MatchString(info.CommandLine()) {
			out = append(out, info)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: pattern %q", discovery.ErrNoMatch, pattern)
	}
	return out, nil
}

func (h *fakeHost) capture(pid int) (*process.LaunchSpec, error) {
	if !h.isAlive(pid) {
		return nil, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
	}
	return &process.LaunchSpec{Path: "/usr/bin/svc", Args: []string{"svc"}}, nil
}

// fakeRelauncher starts processes in the fake host
// fakeRelauncher 在假主机中启动进程
type fakeRelauncher struct {
	host       *fakeHost
	launchErr  error
	waitErr    error
	launchedAt []time.Time
}

func (f *fakeRelauncher) Relaunch(ctx context.Context, spec *process.LaunchSpec) (*restart.Relaunched, error) {
	if f.launchErr != nil {
		return nil, fmt.Errorf("%w: %v", restart.ErrRelaunchFailed, f.launchErr)
	}
	f.host.mu.Lock()
	f.host.nextPID++
	pid := f.host.nextPID
	f.host.mu.Unlock()
	f.host.add(pid, fakeProc{})
	f.launchedAt = append(f.launchedAt, time.Now())
	return &restart.Relaunched{PID: pid, Spec: spec, StartedAt: time.Now()}, nil
}

func (f *fakeRelauncher) WaitRunning(ctx context.Context, rl *restart.Relaunched) error {
	if f.waitErr != nil {
		return f.waitErr
	}
	if !f.host.isAlive(rl.PID) {
		return fmt.Errorf("%w: pid %d", restart.ErrExited, rl.PID)
	}
	return nil
}

// newFakeRemediator wires a Remediator to host with short timeouts
// newFakeRemediator 使用较短的超时将 Remediator 接到 host 上
func newFakeRemediator(host *fakeHost, lockDir string) (*Remediator, *fakeRelauncher) {
	cfg := Config{
		GracefulTimeout: 50 * time.Millisecond,
		KillTimeout:     50 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
		ForceKill:       true,
		LockDir:         lockDir,
	}
	rl := &fakeRelauncher{host: host}
	r := New(cfg, logger.Nop())
	r.resolver = host
	r.relauncher = rl
	r.locker = lock.NewLocker(lockDir)
	r.signal = host.signal
	r.probe = host.probe
	r.isAlive = host.isAlive
	r.capture = host.capture
	return r, rl
}
