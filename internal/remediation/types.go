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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Action is a remediation action
// Action 是修复动作
type Action string

const (
	// ActionKill terminates the target / ActionKill 终止目标
	ActionKill Action = "kill"
	// ActionRestart terminates the target and launches it again / ActionRestart 终止目标并重新启动
	ActionRestart Action = "restart"
)

// ParseAction converts a name to an Action
// ParseAction 将名称转换为 Action
func ParseAction(name string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(name))); a {
	case ActionKill, ActionRestart:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTarget, name)
	}
}

// Target identifies the process to act on. Exactly one of PID and Pattern is set.
// Target 标识要操作的进程，PID 与 Pattern 必须且只能设置一个。
type Target struct {
	// PID is a numeric process ID
	// PID 是数字进程 ID
	PID int `json:"pid,omitempty"`

	// Pattern is a regular expression matched against the process name and command line
	// Pattern 是与进程名称和命令行匹配的正则表达式
	Pattern string `json:"pattern,omitempty"`

	// Command overrides the captured launch spec on restart
	// Command 在重启时覆盖捕获的启动规格
	Command []string `json:"command,omitempty"`
}

// PIDTarget targets a single process ID
// PIDTarget 以单个进程 ID 为目标
func PIDTarget(pid int) Target {
	return Target{PID: pid}
}

// PatternTarget targets every process matching pattern
// PatternTarget 以所有匹配 pattern 的进程为目标
func PatternTarget(pattern string) Target {
	return Target{Pattern: pattern}
}

// Validate checks that exactly one selector is set
// Validate 检查是否只设置了一个选择器
func (t Target) Validate() error {
	switch {
	case t.PID != 0 && t.Pattern != "":
		return fmt.Errorf("%w: both pid and pattern set", ErrInvalidTarget)
	case t.PID < 0:
		return fmt.Errorf("%w: pid %d", ErrInvalidTarget, t.PID)
	case t.PID == 0 && t.Pattern == "":
		return fmt.Errorf("%w: no pid or pattern", ErrInvalidTarget)
	}
	return nil
}

func (t Target) String() string {
	if t.Pattern != "" {
		return fmt.Sprintf("pattern %q", t.Pattern)
	}
	return fmt.Sprintf("pid %d", t.PID)
}

// Outcome is the structured result printed for every invocation
// Outcome 是每次调用输出的结构化结果
type Outcome struct {
	// Success reports that the action was issued without a system-level error
	// Success 表示动作已下发且没有系统级错误
	Success bool `json:"success"`

	// Passed reports that verification ran and confirmed the desired state
	// Passed 表示验证已执行并确认了期望状态
	Passed bool `json:"passed"`

	// Result is a human readable summary
	// Result 是可读的摘要
	Result string `json:"result"`
}

// JSON returns the outcome as a single-line JSON object
// JSON 返回单行 JSON 对象形式的结果
func (o Outcome) JSON() []byte {
	data, err := json.Marshal(o)
	if err != nil {
		// Three plain fields cannot fail to marshal / 三个普通字段不会序列化失败
		panic(err)
	}
	return data
}

// Report is an outcome plus the diagnostics that stay out of the JSON result
// Report 是结果加上不进入 JSON 结果的诊断信息
type Report struct {
	RunID     string
	Action    Action
	Target    Target
	PIDs      []int
	NewPIDs   []int
	Escalated bool
	Verified  bool
	Duration  time.Duration
	Err       error
	Outcome   Outcome
}
