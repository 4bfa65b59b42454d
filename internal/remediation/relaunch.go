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
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seatunnel/remediator/internal/process"
	"github.com/seatunnel/remediator/internal/restart"
)

// restartTargets captures launch specs, terminates the targets, relaunches them
// and waits for every new instance to settle.
// restartTargets 捕获启动规格、终止目标、重新启动并等待每个新实例稳定。
func (r *Remediator) restartTargets(ctx context.Context, report *Report) {
	log := r.log.Ctx(ctx)

	// Specs must be read before termination / 必须在终止前读取启动规格
	specs, err := r.launchSpecs(report.Target, report.PIDs)
	if err != nil {
		report.Err = fmt.Errorf("%w: %v", ErrRelaunchFailed, err)
		report.Outcome = failedWith(false, resultSpecUnavailable, err)
		return
	}

	escalated, err := r.terminate(ctx, report.PIDs)
	report.Escalated = escalated
	if err != nil {
		report.Err = err
		report.Outcome = r.terminateFailure(err)
		return
	}

	launched := make([]*restart.Relaunched, 0, len(specs))
	for _, spec := range specs {
		rl, err := r.relauncher.Relaunch(ctx, spec)
		if err != nil {
			report.Err = wrapRelaunch(err)
			report.Outcome = failed(true, report.Err.Error())
			return
		}
		log.Info("Process relaunched / 进程已重新启动", zap.Int("pid", rl.PID), zap.Stringer("spec", spec))
		launched = append(launched, rl)
		report.NewPIDs = append(report.NewPIDs, rl.PID)
	}

	for _, rl := range launched {
		if err := r.relauncher.WaitRunning(ctx, rl); err != nil {
			if errors.Is(err, restart.ErrExited) {
				report.Err = wrapRelaunch(err)
				report.Outcome = failed(true, report.Err.Error())
				return
			}
			report.Err = fmt.Errorf("%w: %v", ErrVerificationTimeout, err)
			report.Outcome = failed(true, resultNotRunning)
			return
		}
	}

	report.Verified = true
	report.Outcome = Outcome{Success: true, Passed: true, Result: resultRestarted}
}

// launchSpecs returns the specs to relaunch: the caller's command once, or the
// captured spec of every resolved process.
// launchSpecs 返回要重新启动的规格：调用方的命令（仅一次），或每个解析出进程的捕获规格。
func (r *Remediator) launchSpecs(target Target, pids []int) ([]*process.LaunchSpec, error) {
	if len(target.Command) > 0 {
		spec, err := process.SpecFromCommand(target.Command)
		if err != nil {
			return nil, err
		}
		return []*process.LaunchSpec{spec}, nil
	}

	specs := make([]*process.LaunchSpec, 0, len(pids))
	for _, pid := range pids {
		spec, err := r.capture(pid)
		if err != nil {
			return nil, fmt.Errorf("pid %d: %w", pid, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// wrapRelaunch tags err with ErrRelaunchFailed without repeating the prefix
// wrapRelaunch 用 ErrRelaunchFailed 标记 err，且不重复前缀
func wrapRelaunch(err error) error {
	msg := strings.TrimPrefix(err.Error(), restart.ErrRelaunchFailed.Error()+": ")
	return fmt.Errorf("%w: %s", ErrRelaunchFailed, msg)
}
