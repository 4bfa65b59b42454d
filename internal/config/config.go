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

// Package config provides configuration management for the remediator.
// config 包提供修复器的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables / 环境变量
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath      = "/etc/remediator/config.yaml"
	DefaultGracefulTimeout = 10 * time.Second
	DefaultKillTimeout     = 5 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultRestartTimeout  = 30 * time.Second
	DefaultSettlePeriod    = 1 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = 100 // MB
	DefaultLogMaxBackups   = 3
	DefaultLogMaxAge       = 7 // days
	DefaultExporter        = "stdout"
	DefaultServiceName     = "remediator"

	// EnvPrefix is the prefix of environment overrides, e.g. REMEDIATOR_LOG_LEVEL
	// EnvPrefix 是环境变量覆盖的前缀，例如 REMEDIATOR_LOG_LEVEL
	EnvPrefix = "REMEDIATOR"
)

// DefaultLockDir returns the default directory for per-target lock files
// DefaultLockDir 返回每个目标锁文件的默认目录
func DefaultLockDir() string {
	return filepath.Join(os.TempDir(), "remediator-locks")
}

// Config represents the remediator configuration
// Config 表示修复器配置
type Config struct {
	// Remediation configuration / 修复配置
	Remediation RemediationConfig `mapstructure:"remediation"`

	// Restart configuration / 重启配置
	Restart RestartConfig `mapstructure:"restart"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log"`

	// Telemetry configuration / 遥测配置
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// RemediationConfig contains termination and verification settings
// RemediationConfig 包含终止与验证设置
type RemediationConfig struct {
	// GracefulTimeout is how long to wait for exit after SIGTERM
	// GracefulTimeout 是发送 SIGTERM 后等待退出的时长
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`

	// KillTimeout is how long to wait for exit after SIGKILL
	// KillTimeout 是发送 SIGKILL 后等待退出的时长
	KillTimeout time.Duration `mapstructure:"kill_timeout"`

	// PollInterval is the process table polling interval
	// PollInterval 是进程表轮询间隔
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// ForceKill enables escalation to SIGKILL
	// ForceKill 启用升级为 SIGKILL
	ForceKill bool `mapstructure:"force_kill"`

	// LockDir holds the per-target lock files
	// LockDir 存放每个目标的锁文件
	LockDir string `mapstructure:"lock_dir"`
}

// RestartConfig contains relaunch settings
// RestartConfig 包含重新启动设置
type RestartConfig struct {
	// Timeout bounds the wait for the new process to settle
	// Timeout 限制等待新进程稳定的时长
	Timeout time.Duration `mapstructure:"timeout"`

	// SettlePeriod is how long the new process must stay alive
	// SettlePeriod 是新进程必须持续存活的时长
	SettlePeriod time.Duration `mapstructure:"settle_period"`

	// OutputFile receives stdout/stderr of the new process (null device when empty)
	// OutputFile 接收新进程的标准输出与标准错误（为空时为空设备）
	OutputFile string `mapstructure:"output_file"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level"`

	// File is the log file path, empty disables file logging
	// File 是日志文件路径，为空时不写文件
	File string `mapstructure:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age"`
}

// TelemetryConfig contains tracing settings
// TelemetryConfig 包含链路追踪设置
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Exporter    string `mapstructure:"exporter"` // stdout or otlp
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	File        string `mapstructure:"file"`
	ServiceName string `mapstructure:"service_name"`
}

// newViper creates a viper instance with defaults and env overrides
// newViper 创建带默认值和环境变量覆盖的 viper 实例
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile reads the config file; a missing file is not an error
// readConfigFile 读取配置文件；文件不存在不是错误
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			// Only fail if the file exists but cannot be read / 仅在文件存在但无法读取时失败
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := newViper()

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Remediation defaults / 修复默认值
	v.SetDefault("remediation.graceful_timeout", DefaultGracefulTimeout)
	v.SetDefault("remediation.kill_timeout", DefaultKillTimeout)
	v.SetDefault("remediation.poll_interval", DefaultPollInterval)
	v.SetDefault("remediation.force_kill", true)
	v.SetDefault("remediation.lock_dir", DefaultLockDir())

	// Restart defaults / 重启默认值
	v.SetDefault("restart.timeout", DefaultRestartTimeout)
	v.SetDefault("restart.settle_period", DefaultSettlePeriod)
	v.SetDefault("restart.output_file", "")

	// Log defaults / 日志默认值
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)

	// Telemetry defaults / 遥测默认值
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", DefaultExporter)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.file", "")
	v.SetDefault("telemetry.service_name", DefaultServiceName)
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	r := c.Remediation
	if r.GracefulTimeout <= 0 {
		return errors.New("remediation.graceful_timeout must be positive")
	}
	if r.KillTimeout <= 0 {
		return errors.New("remediation.kill_timeout must be positive")
	}
	if r.PollInterval <= 0 {
		return errors.New("remediation.poll_interval must be positive")
	}
	if r.PollInterval >= r.GracefulTimeout {
		return errors.New("remediation.poll_interval must be shorter than remediation.graceful_timeout")
	}
	if r.LockDir == "" {
		return errors.New("remediation.lock_dir is required")
	}

	if c.Restart.Timeout <= 0 {
		return errors.New("restart.timeout must be positive")
	}
	if c.Restart.SettlePeriod < 0 {
		return errors.New("restart.settle_period must not be negative")
	}
	if c.Restart.SettlePeriod >= c.Restart.Timeout {
		return errors.New("restart.settle_period must be shorter than restart.timeout")
	}

	// Validate log level / 验证日志级别
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	// Validate telemetry / 验证遥测配置
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return errors.New("telemetry.endpoint is required for the otlp exporter")
			}
		default:
			return fmt.Errorf("invalid telemetry exporter: %s (must be stdout or otlp)", c.Telemetry.Exporter)
		}
	}

	return nil
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{GracefulTimeout: %v, KillTimeout: %v, ForceKill: %t, RestartTimeout: %v, Log.Level: %s}",
		c.Remediation.GracefulTimeout,
		c.Remediation.KillTimeout,
		c.Remediation.ForceKill,
		c.Restart.Timeout,
		c.Log.Level,
	)
}

// ToYAML serializes the configuration to YAML format. Durations are written in
// their string form so the output can be fed back to Load.
// ToYAML 将配置序列化为 YAML 格式。时长以字符串形式输出，以便可以重新被 Load 读取。
func (c *Config) ToYAML() ([]byte, error) {
	doc := map[string]interface{}{
		"remediation": map[string]interface{}{
			"graceful_timeout": c.Remediation.GracefulTimeout.String(),
			"kill_timeout":     c.Remediation.KillTimeout.String(),
			"poll_interval":    c.Remediation.PollInterval.String(),
			"force_kill":       c.Remediation.ForceKill,
			"lock_dir":         c.Remediation.LockDir,
		},
		"restart": map[string]interface{}{
			"timeout":       c.Restart.Timeout.String(),
			"settle_period": c.Restart.SettlePeriod.String(),
			"output_file":   c.Restart.OutputFile,
		},
		"log": map[string]interface{}{
			"level":       c.Log.Level,
			"file":        c.Log.File,
			"max_size":    c.Log.MaxSize,
			"max_backups": c.Log.MaxBackups,
			"max_age":     c.Log.MaxAge,
		},
		"telemetry": map[string]interface{}{
			"enabled":      c.Telemetry.Enabled,
			"exporter":     c.Telemetry.Exporter,
			"endpoint":     c.Telemetry.Endpoint,
			"insecure":     c.Telemetry.Insecure,
			"file":         c.Telemetry.File,
			"service_name": c.Telemetry.ServiceName,
		},
	}
	return yaml.Marshal(doc)
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}
