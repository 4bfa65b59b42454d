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

package discovery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/seatunnel/remediator/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func staticList(procs ...process.Info) ListFunc {
	return func(ctx context.Context) ([]process.Info, error) {
		return procs, nil
	}
}

func alwaysAlive(int) bool { return true }

// **Feature: process-remediator, Property 5: 排除自身进程**
// For any flat process table, the excluded PIDs (remediator and its parent) are never
// returned, even when their command line matches the pattern.
// 对于任何进程表，被排除的 PID（修复器及其父进程）永远不会被返回，即使命令行匹配模式。
func TestProperty_ExcludedNeverReturned(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		self := rapid.IntRange(1, n).Draw(t, "self")

		var procs []process.Info
		for pid := 1; pid <= n; pid++ {
			procs = append(procs, process.Info{
				PID:     pid,
				Name:    "worker",
				Cmdline: []string{"/usr/bin/worker", fmt.Sprintf("--id=%d", pid)},
			})
		}

		scanner := newProcessScanner(staticList(procs...), alwaysAlive, self)
		got, err := scanner.ScanProcesses(context.Background(), "worker")

		if n == 1 {
			if !errors.Is(err, ErrNoMatch) {
				t.Fatalf("expected ErrNoMatch when only self matches, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != n-1 {
			t.Fatalf("got %d matches, want %d", len(got), n-1)
		}
		for _, p := range got {
			if p.PID == self {
				t.Fatalf("excluded pid %d returned", self)
			}
		}
	})
}

// **Feature: process-remediator, Property 11: 排除祖先进程**
// For any ancestor chain above the remediator, no ancestor is returned even when
// every one of them matches, while matching non-ancestors still are.
// 对于修复器之上的任意祖先链，即使全部匹配也不会返回任何祖先，而匹配的非祖先进程仍会被返回。
func TestProperty_AncestorsNeverReturned(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(1, 8).Draw(t, "depth")
		others := rapid.IntRange(0, 6).Draw(t, "others")

		// PIDs 1..depth form the chain init -> ... -> self
		// PID 1..depth 构成 init -> ... -> self 的链
		var procs []process.Info
		for pid := 1; pid <= depth; pid++ {
			procs = append(procs, process.Info{
				PID:     pid,
				PPID:    pid - 1,
				Name:    "sh",
				Cmdline: []string{"sh", "-c", "rem kill --name qqtgt"},
			})
		}
		self := depth

		want := make(map[int]bool, others)
		for i := 1; i <= others; i++ {
			pid := depth + i
			ppid := rapid.IntRange(1, pid-1).Draw(t, fmt.Sprintf("ppid-%d", pid))
			procs = append(procs, process.Info{
				PID:     pid,
				PPID:    ppid,
				Name:    "qqtgt",
				Cmdline: []string{"/opt/qqtgt", fmt.Sprintf("--id=%d", pid)},
			})
			want[pid] = true
		}

		scanner := newProcessScanner(staticList(procs...), alwaysAlive, self)
		got, err := scanner.ScanProcesses(context.Background(), "qqtgt")

		if others == 0 {
			if !errors.Is(err, ErrNoMatch) {
				t.Fatalf("expected ErrNoMatch when only ancestors match, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != others {
			t.Fatalf("got %d matches, want %d", len(got), others)
		}
		for _, p := range got {
			if !want[p.PID] {
				t.Fatalf("ancestor pid %d returned (chain 1..%d)", p.PID, depth)
			}
		}
	})
}

func TestProcessScanner_ParentCycle(t *testing.T) {
	table := staticList(
		process.Info{PID: 10, PPID: 11, Name: "svc"},
		process.Info{PID: 11, PPID: 10, Name: "svc"},
		process.Info{PID: 12, PPID: 1, Name: "svc"},
	)
	scanner := newProcessScanner(table, alwaysAlive, 10)

	got, err := scanner.ScanProcesses(context.Background(), "svc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].PID)
}

func TestProcessScanner_ScanProcesses(t *testing.T) {
	table := staticList(
		process.Info{PID: 10, Name: "nginx", Cmdline: []string{"nginx: master process /usr/sbin/nginx"}},
		process.Info{PID: 11, Name: "nginx", Cmdline: []string{"nginx: worker process"}},
		process.Info{PID: 20, Name: "java", Cmdline: []string{"java", "-jar", "/opt/app/billing.jar"}},
		process.Info{PID: 30, Name: "kworker/0:1"},
		process.Info{PID: 40, Name: "python3", Cmdline: []string{"python3", "dead.py"}},
	)
	dead := map[int]bool{40: true}
	scanner := newProcessScanner(table, func(pid int) bool { return !dead[pid] })

	testCases := []struct {
		name     string
		pattern  string
		wantPIDs []int
		wantErr  error
	}{
		{name: "by name", pattern: "^nginx$", wantPIDs: []int{10, 11}},
		{name: "by command line", pattern: `billing\.jar`, wantPIDs: []int{20}},
		{name: "kernel thread by name", pattern: "^kworker", wantPIDs: []int{30}},
		{name: "dead process skipped", pattern: "dead.py", wantErr: ErrNoMatch},
		{name: "no match", pattern: "postgres", wantErr: ErrNoMatch},
		{name: "invalid regex", pattern: "([", wantErr: ErrInvalidPattern},
		{name: "empty pattern", pattern: "", wantErr: ErrInvalidPattern},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := scanner.ScanProcesses(context.Background(), tc.pattern)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			var pids []int
			for _, p := range got {
				pids = append(pids, p.PID)
			}
			assert.Equal(t, tc.wantPIDs, pids)
		})
	}
}

func TestProcessScanner_ListError(t *testing.T) {
	boom := errors.New("boom")
	scanner := newProcessScanner(func(ctx context.Context) ([]process.Info, error) {
		return nil, boom
	}, alwaysAlive)

	_, err := scanner.ScanProcesses(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoMatch)
}

func TestProcessScanner_ResolvePID(t *testing.T) {
	scanner := NewProcessScanner()

	_, err := scanner.ResolvePID(0)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = scanner.ResolvePID(-5)
	assert.ErrorIs(t, err, ErrNoMatch)

	if !process.IsAlive(999999) {
		_, err = scanner.ResolvePID(999999)
		assert.ErrorIs(t, err, ErrNoMatch)
	}
}

// TestProcessScanner_RealProcess tests resolution against the real process table
// TestProcessScanner_RealProcess 测试针对真实进程表的解析
func TestProcessScanner_RealProcess(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "313")
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	defer func() {
		_ = cmd.Process.Kill()
		<-done
	}()

	scanner := NewProcessScanner()

	info, err := scanner.ResolvePID(cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, info.PID)

	var got []process.Info
	require.Eventually(t, func() bool {
		got, err = scanner.ScanProcesses(context.Background(), `^sleep 313$`)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, cmd.Process.Pid, got[0].PID)
}
