//go:build !linux && !windows
// +build !linux,!windows

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
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// psTable runs ps and parses "pid ppid stat args" rows
// psTable 运行 ps 并解析 "pid ppid stat args" 行
func psTable(extra ...string) ([]Info, []string, error) {
	args := append([]string{"-o", "pid=,ppid=,stat=,args="}, extra...)
	output, err := exec.Command("ps", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			// No rows selected / 未选中任何行
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to run ps: %w", err)
	}

	var (
		procs  []Info
		states []string
	)
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, _ := strconv.Atoi(fields[1])
		procs = append(procs, Info{
			PID:     pid,
			PPID:    ppid,
			Name:    filepath.Base(fields[3]),
			Cmdline: fields[3:],
		})
		states = append(states, fields[2])
	}
	return procs, states, nil
}

func isZombie(pid int) bool {
	_, states, err := psTable("-p", strconv.Itoa(pid))
	if err != nil || len(states) == 0 {
		return err == nil
	}
	return strings.HasPrefix(states[0], "Z")
}

func listProcesses() ([]Info, error) {
	procs, _, err := psTable("-ax")
	return procs, err
}

func lookupProcess(pid int) (Info, error) {
	procs, _, err := psTable("-p", strconv.Itoa(pid))
	if err != nil {
		return Info{}, err
	}
	if len(procs) == 0 {
		return Info{}, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	}
	return procs[0], nil
}

// captureLaunchSpec is best effort here: ps splits arguments on whitespace and
// exposes neither the working directory nor the environment.
// 此处 captureLaunchSpec 尽力而为：ps 按空白拆分参数，且不提供工作目录和环境变量。
func captureLaunchSpec(pid int) (*LaunchSpec, error) {
	info, err := lookupProcess(pid)
	if err != nil {
		return nil, err
	}
	spec, err := SpecFromCommand(info.Cmdline)
	if err != nil {
		return nil, err
	}
	return spec, nil
}
