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
	"context"
	"sort"
)

// List returns every process currently in the process table, sorted by PID
// List 返回当前进程表中的所有进程，按 PID 排序
func List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	procs, err := listProcesses()
	if err != nil {
		return nil, err
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

// Lookup returns the process table entry of pid
// Lookup 返回 pid 对应的进程表条目
func Lookup(pid int) (Info, error) {
	return lookupProcess(pid)
}

// CaptureLaunchSpec reads how pid was launched so it can be started again.
// It must be called while the process is still alive.
// CaptureLaunchSpec 读取 pid 的启动方式以便再次启动，必须在进程存活时调用。
func CaptureLaunchSpec(pid int) (*LaunchSpec, error) {
	return captureLaunchSpec(pid)
}
