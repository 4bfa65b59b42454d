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

import "errors"

// Remediation error taxonomy. Every error is recovered into an Outcome.
// 修复错误分类，所有错误都会被转换为 Outcome。
var (
	// ErrTargetNotFound indicates the target resolved to no live process
	// ErrTargetNotFound 表示目标没有解析到任何存活进程
	ErrTargetNotFound = errors.New("target not found")

	// ErrScanFailed indicates the process table could not be listed
	// ErrScanFailed 表示无法列举进程表
	ErrScanFailed = errors.New("process scan failed")

	// ErrInvalidTarget indicates a malformed target or action
	// ErrInvalidTarget 表示目标或动作格式错误
	ErrInvalidTarget = errors.New("invalid target")

	// ErrTargetBusy indicates another invocation is acting on the target
	// ErrTargetBusy 表示另一个调用正在操作该目标
	ErrTargetBusy = errors.New("target busy")

	// ErrSignalRejected indicates the OS refused the termination signal
	// ErrSignalRejected 表示操作系统拒绝了终止信号
	ErrSignalRejected = errors.New("termination signal rejected")

	// ErrRelaunchFailed indicates the process could not be started again
	// ErrRelaunchFailed 表示进程无法重新启动
	ErrRelaunchFailed = errors.New("relaunch failed")

	// ErrVerificationTimeout indicates the desired state was not confirmed in time
	// ErrVerificationTimeout 表示未能按时确认期望状态
	ErrVerificationTimeout = errors.New("verification timeout")
)

// Result strings of the outcome / 结果字符串
const (
	resultTerminated      = "process terminated"
	resultRestarted       = "process restarted"
	resultNotFound        = "target not found"
	resultBusy            = "target busy"
	resultStillPresent    = "process still present after termination"
	resultNotRunning      = "restarted process did not reach running state"
	resultSpecUnavailable = "launch spec unavailable"
	resultLockUnavailable = "lock unavailable"
)

// failed builds an outcome that did not pass verification
// failed 构建未通过验证的结果
func failed(success bool, result string) Outcome {
	return Outcome{Success: success, Passed: false, Result: result}
}

// failedWith builds a failed outcome whose result is prefix followed by err
// failedWith 构建结果为 prefix 加 err 的失败结果
func failedWith(success bool, prefix string, err error) Outcome {
	return failed(success, prefix+": "+err.Error())
}
