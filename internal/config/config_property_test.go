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

package config

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// **Feature: process-remediator, Property 8: Config YAML Round-Trip**
//
// Property: For any valid configuration object, serializing to YAML
// and parsing back SHALL produce an equivalent configuration.
// 属性：对于任何有效的配置对象，序列化为 YAML 并解析回来应该产生等效的配置。
func TestProperty_ConfigYAMLRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateValidConfig(t)

		yamlData, err := cfg.ToYAML()
		if err != nil {
			t.Fatalf("Failed to serialize config to YAML: %v", err)
		}

		parsedCfg, err := LoadFromYAML(yamlData)
		if err != nil {
			t.Fatalf("Failed to parse config from YAML: %v\nYAML content:\n%s", err, string(yamlData))
		}

		if !cfg.Equal(parsedCfg) {
			t.Fatalf("Round-trip failed\nOriginal: %+v\nParsed: %+v\nYAML:\n%s", cfg, parsedCfg, string(yamlData))
		}
	})
}

// generateValidConfig generates a valid Config for property testing
// generateValidConfig 为属性测试生成有效的 Config
func generateValidConfig(t *rapid.T) *Config {
	graceful := time.Duration(rapid.IntRange(1, 120).Draw(t, "gracefulSeconds")) * time.Second
	poll := time.Duration(rapid.IntRange(10, 900).Draw(t, "pollMillis")) * time.Millisecond
	restartTimeout := time.Duration(rapid.IntRange(2, 300).Draw(t, "restartSeconds")) * time.Second
	settle := time.Duration(rapid.IntRange(0, 1000).Draw(t, "settleMillis")) * time.Millisecond

	pathSegment := rapid.StringMatching(`[a-z][a-z0-9_]{0,12}`)
	optionalPath := func(label string) string {
		if rapid.Bool().Draw(t, label+"Set") {
			return "/var/" + pathSegment.Draw(t, label)
		}
		return ""
	}

	exporter := rapid.SampledFrom([]string{"stdout", "otlp"}).Draw(t, "exporter")
	endpoint := ""
	if exporter == "otlp" {
		endpoint = fmt.Sprintf("%s:%d", pathSegment.Draw(t, "host"), rapid.IntRange(1024, 65535).Draw(t, "port"))
	}

	cfg := &Config{
		Remediation: RemediationConfig{
			GracefulTimeout: graceful,
			KillTimeout:     time.Duration(rapid.IntRange(1, 60).Draw(t, "killSeconds")) * time.Second,
			PollInterval:    poll,
			ForceKill:       rapid.Bool().Draw(t, "forceKill"),
			LockDir:         "/tmp/" + pathSegment.Draw(t, "lockDir"),
		},
		Restart: RestartConfig{
			Timeout:      restartTimeout,
			SettlePeriod: settle,
			OutputFile:   optionalPath("outputFile"),
		},
		Log: LogConfig{
			Level:      rapid.SampledFrom([]string{"debug", "info", "warn", "error"}).Draw(t, "logLevel"),
			File:       optionalPath("logFile"),
			MaxSize:    rapid.IntRange(1, 1000).Draw(t, "maxSize"),
			MaxBackups: rapid.IntRange(0, 30).Draw(t, "maxBackups"),
			MaxAge:     rapid.IntRange(0, 90).Draw(t, "maxAge"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     rapid.Bool().Draw(t, "telemetryEnabled"),
			Exporter:    exporter,
			Endpoint:    endpoint,
			Insecure:    rapid.Bool().Draw(t, "insecure"),
			File:        optionalPath("spanFile"),
			ServiceName: pathSegment.Draw(t, "serviceName"),
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated config is invalid: %v", err)
	}
	return cfg
}

// **Feature: process-remediator, Property 9: Config Loading Priority**
//
// Property: A command line override always wins over the environment,
// and the environment always wins over the default.
// 属性：命令行覆盖总是优先于环境变量，环境变量总是优先于默认值。
func TestProperty_ConfigLoadingPriority(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		envSeconds := rapid.IntRange(1, 60).Draw(rt, "envSeconds")
		flagSeconds := rapid.IntRange(61, 120).Draw(rt, "flagSeconds")
		useFlag := rapid.Bool().Draw(rt, "useFlag")

		t.Setenv("REMEDIATOR_REMEDIATION_KILL_TIMEOUT", fmt.Sprintf("%ds", envSeconds))

		var overrides map[string]interface{}
		if useFlag {
			overrides = map[string]interface{}{
				"remediation.kill_timeout": time.Duration(flagSeconds) * time.Second,
			}
		}

		cfg, err := LoadWithPriority("/nonexistent/remediator.yaml", overrides)
		if err != nil {
			rt.Fatalf("load failed: %v", err)
		}

		want := time.Duration(envSeconds) * time.Second
		if useFlag {
			want = time.Duration(flagSeconds) * time.Second
		}
		if cfg.Remediation.KillTimeout != want {
			rt.Fatalf("kill_timeout = %v, want %v", cfg.Remediation.KillTimeout, want)
		}
		if cfg.Remediation.GracefulTimeout != DefaultGracefulTimeout {
			rt.Fatalf("graceful_timeout = %v, want default", cfg.Remediation.GracefulTimeout)
		}
	})
}

// **Feature: process-remediator, Property 10: Invalid Config Rejection**
//
// Property: Any non-positive remediation timeout is rejected by Validate.
// 属性：任何非正的修复超时都会被 Validate 拒绝。
func TestProperty_InvalidConfigRejection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateValidConfig(t)
		bad := -time.Duration(rapid.IntRange(0, 1000).Draw(t, "badMillis")) * time.Millisecond

		field := rapid.SampledFrom([]string{"graceful_timeout", "kill_timeout", "poll_interval", "restart.timeout"}).Draw(t, "field")
		switch field {
		case "graceful_timeout":
			cfg.Remediation.GracefulTimeout = bad
		case "kill_timeout":
			cfg.Remediation.KillTimeout = bad
		case "poll_interval":
			cfg.Remediation.PollInterval = bad
		case "restart.timeout":
			cfg.Restart.Timeout = bad
		}

		err := cfg.Validate()
		if err == nil {
			t.Fatalf("expected %s=%v to be rejected", field, bad)
		}
		if !strings.Contains(err.Error(), strings.TrimPrefix(field, "restart.")) {
			t.Fatalf("error %q does not name %s", err, field)
		}
	})
}
