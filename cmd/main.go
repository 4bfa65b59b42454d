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

// Package main is the entry point for the remediator CLI.
// main 包是修复器 CLI 的入口点。
//
// The remediator kills or restarts a local process, verifies the result and
// prints exactly one JSON outcome on stdout. Diagnostics go to stderr.
// 修复器终止或重启本机进程，验证结果并在标准输出打印且仅打印一个 JSON 结果，诊断信息输出到标准错误。
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seatunnel/remediator/internal/config"
	"github.com/seatunnel/remediator/internal/logger"
	"github.com/seatunnel/remediator/internal/remediation"
	"github.com/seatunnel/remediator/internal/telemetry"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// options holds the flag values of one invocation
// options 保存一次调用的标志值
type options struct {
	configFile      string
	pid             int
	name            string
	gracefulTimeout time.Duration
	killTimeout     time.Duration
	restartTimeout  time.Duration
	settle          time.Duration
	noForceKill     bool
	logLevel        string
}

// cli is one command tree bound to its output streams
// cli 是绑定到输出流的一棵命令树
type cli struct {
	opts    options
	stdout  io.Writer
	stderr  io.Writer
	printed bool
	outcome remediation.Outcome
}

// newRootCmd builds the command tree
// newRootCmd 构建命令树
func newRootCmd(c *cli) *cobra.Command {
	// rootCmd is the root command for the remediator CLI
	// rootCmd 是修复器 CLI 的根命令
	rootCmd := &cobra.Command{
		Use:   "remediator",
		Short: "Remediator - kill or restart a local process and verify the result",
		Long: `Remediator applies a remediation action to a local process and verifies it.
Remediator 对本机进程执行修复动作并进行验证。

Actions / 动作:
- kill: SIGTERM, then SIGKILL after the graceful timeout / 先 SIGTERM，优雅超时后 SIGKILL
- restart: terminate, relaunch with the captured command line, wait until running / 终止后按捕获的命令行重新启动并等待运行

Every kill or restart prints one JSON object {"success","passed","result"} on stdout.
每次 kill 或 restart 都会在标准输出打印一个 JSON 对象 {"success","passed","result"}。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(c.stdout)
	rootCmd.SetErr(c.stderr)

	// Add flags to root command / 向根命令添加标志
	rootCmd.PersistentFlags().StringVarP(&c.opts.configFile, "config", "c", "", "config file path (default: "+config.DefaultConfigPath+")")

	killCmd := &cobra.Command{
		Use:   "kill (--pid PID | --name REGEX)",
		Short: "Terminate the target process / 终止目标进程",
		RunE:  c.runAction,
	}
	restartCmd := &cobra.Command{
		Use:   "restart (--pid PID | --name REGEX) [-- command args...]",
		Short: "Restart the target process / 重启目标进程",
		Long: `Restart terminates the target and launches it again with its original command line,
working directory and environment. A command given after -- replaces the captured one.
restart 终止目标并以原始命令行、工作目录和环境重新启动；-- 之后给出的命令会替换捕获的命令。`,
		RunE:  c.runAction,
	}
	for _, cmd := range []*cobra.Command{killCmd, restartCmd} {
		flags := cmd.Flags()
		flags.IntVar(&c.opts.pid, "pid", 0, "target process ID")
		flags.StringVar(&c.opts.name, "name", "", "regular expression matched against the process name and command line")
		flags.DurationVar(&c.opts.gracefulTimeout, "graceful-timeout", config.DefaultGracefulTimeout, "wait after SIGTERM before escalating")
		flags.DurationVar(&c.opts.killTimeout, "kill-timeout", config.DefaultKillTimeout, "wait after SIGKILL")
		flags.BoolVar(&c.opts.noForceKill, "no-force-kill", false, "never escalate to SIGKILL")
		flags.StringVar(&c.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	}
	restartCmd.Flags().DurationVar(&c.opts.restartTimeout, "restart-timeout", config.DefaultRestartTimeout, "wait for the relaunched process to settle")
	restartCmd.Flags().DurationVar(&c.opts.settle, "settle", config.DefaultSettlePeriod, "how long the relaunched process must stay alive")

	// versionCmd shows version information
	// versionCmd 显示版本信息
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information / 打印版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Remediator\n")
			fmt.Fprintf(out, "  Version:    %s\n", Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration / 查看配置",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML / 以 YAML 打印生效的配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.opts.configFile)
			if err != nil {
				return err
			}
			data, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	// Add subcommands / 添加子命令
	rootCmd.AddCommand(killCmd, restartCmd, versionCmd, configCmd)
	return rootCmd
}

// overrides collects the flags set on the command line as config keys
// overrides 将命令行上设置的标志收集为配置键
func (c *cli) overrides(cmd *cobra.Command) map[string]interface{} {
	flags := cmd.Flags()
	out := make(map[string]interface{})
	if flags.Changed("graceful-timeout") {
		out["remediation.graceful_timeout"] = c.opts.gracefulTimeout
	}
	if flags.Changed("kill-timeout") {
		out["remediation.kill_timeout"] = c.opts.killTimeout
	}
	if flags.Changed("no-force-kill") {
		out["remediation.force_kill"] = !c.opts.noForceKill
	}
	if flags.Changed("log-level") {
		out["log.level"] = c.opts.logLevel
	}
	if flags.Lookup("restart-timeout") != nil && flags.Changed("restart-timeout") {
		out["restart.timeout"] = c.opts.restartTimeout
	}
	if flags.Lookup("settle") != nil && flags.Changed("settle") {
		out["restart.settle_period"] = c.opts.settle
	}
	return out
}

// target builds the remediation target from flags and trailing arguments
// target 根据标志和尾随参数构建修复目标
func (c *cli) target(cmd *cobra.Command, action remediation.Action, args []string) (remediation.Target, error) {
	flags := cmd.Flags()
	if flags.Changed("pid") == flags.Changed("name") {
		return remediation.Target{}, fmt.Errorf("%w: exactly one of --pid and --name is required", remediation.ErrInvalidTarget)
	}
	target := remediation.Target{PID: c.opts.pid, Pattern: c.opts.name}
	if flags.Changed("pid") && c.opts.pid <= 0 {
		return remediation.Target{}, fmt.Errorf("%w: pid %d", remediation.ErrInvalidTarget, c.opts.pid)
	}
	if len(args) > 0 {
		if action != remediation.ActionRestart || cmd.ArgsLenAtDash() != 0 {
			return remediation.Target{}, fmt.Errorf("%w: unexpected arguments %q", remediation.ErrInvalidTarget, args)
		}
		target.Command = args
	}
	return target, nil
}

// runAction dispatches kill and restart by command name
// runAction 根据命令名分发 kill 与 restart
func (c *cli) runAction(cmd *cobra.Command, args []string) error {
	action, err := remediation.ParseAction(cmd.Name())
	if err != nil {
		return c.emit(remediation.Outcome{Result: err.Error()})
	}
	return c.run(cmd, action, args)
}

// run executes one kill or restart invocation
// run 执行一次 kill 或 restart 调用
func (c *cli) run(cmd *cobra.Command, action remediation.Action, args []string) error {
	target, err := c.target(cmd, action, args)
	if err != nil {
		return c.emit(remediation.Outcome{Result: err.Error()})
	}

	// Load configuration / 加载配置
	cfg, err := config.LoadWithPriority(c.opts.configFile, c.overrides(cmd))
	if err != nil {
		return c.emit(remediation.Outcome{Result: "invalid configuration: " + err.Error()})
	}
	// Validate configuration / 验证配置
	if err := cfg.Validate(); err != nil {
		return c.emit(remediation.Outcome{Result: "invalid configuration: " + err.Error()})
	}

	log, closeLog, err := logger.New(cfg.Log, c.stderr)
	if err != nil {
		return c.emit(remediation.Outcome{Result: "invalid configuration: " + err.Error()})
	}
	defer closeLog()
	defer func() { _ = log.Sync() }()

	// Setup signal handling so waits end early / 设置信号处理以提前结束等待
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = telemetry.ContextFromEnv(ctx)

	if err := telemetry.Init(ctx, cfg.Telemetry, log); err != nil {
		log.Warn("Tracing disabled / 追踪已禁用", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to flush spans / 刷新 span 失败", zap.Error(err))
		}
	}()

	log.Debug("Configuration loaded / 配置已加载", zap.Stringer("config", cfg))
	r := remediation.New(remediation.ConfigFrom(cfg), logger.WithTrace(log))
	return c.emit(r.Remediate(ctx, target, action))
}

// emit prints the outcome as the single JSON line on stdout
// emit 将结果作为唯一的 JSON 行打印到标准输出
func (c *cli) emit(outcome remediation.Outcome) error {
	if c.printed {
		return nil
	}
	c.printed = true
	c.outcome = outcome
	_, err := fmt.Fprintf(c.stdout, "%s\n", outcome.JSON())
	return err
}

// execute runs the CLI with args and returns the process exit code
// execute 使用 args 运行 CLI 并返回进程退出码
func execute(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(c)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if isRemediation(rootCmd, args) {
			_ = c.emit(remediation.Outcome{Result: "invalid arguments: " + err.Error()})
		}
		return 1
	}
	if c.printed && !c.outcome.Success {
		return 1
	}
	return 0
}

// isRemediation reports whether args invoke kill or restart
// isRemediation 判断 args 是否调用 kill 或 restart
func isRemediation(rootCmd *cobra.Command, args []string) bool {
	cmd, _, err := rootCmd.Find(args)
	if err != nil || cmd == nil {
		return false
	}
	_, err = remediation.ParseAction(cmd.Name())
	return err == nil
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
