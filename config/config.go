// Package config 调试器的配置，来源按优先级从低到高：默认值、yaml文件、环境变量、命令行参数
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Log 日志配置
	Log LogConfig `yaml:"log"`
	// WorkRoot 每个会话的工作目录都在WorkRoot下
	WorkRoot string        `yaml:"workRoot"`
	Compile  CompileConfig `yaml:"compile"`
	Launch   LaunchConfig  `yaml:"launch"`
	Attach   AttachConfig  `yaml:"attach"`
	Session  SessionConfig `yaml:"session"`
	Server   ServerConfig  `yaml:"server"`
}

type LogConfig struct {
	// Path 日志文件，为空时输出到标准错误
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type CompileConfig struct {
	Javac   string        `yaml:"javac"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type LaunchConfig struct {
	Java string `yaml:"java"`
	// UsePTY 通过伪终端收集被调试程序的输出
	UsePTY      bool `yaml:"usePty"`
	OutputLimit int  `yaml:"outputLimit"`
}

type AttachConfig struct {
	Host string `yaml:"host"`
	// Port 为0时每个会话分配一个空闲端口
	Port            int           `yaml:"port"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
	Multiplier      float64       `yaml:"multiplier"`
	Timeout         time.Duration `yaml:"timeout"`
	AttemptTimeout  time.Duration `yaml:"attemptTimeout"`
}

type SessionConfig struct {
	// IdleTimeout 事件循环多久没有收到事件就结束
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	// ExitTimeout 释放连接后等待被调试程序退出的时间
	ExitTimeout time.Duration `yaml:"exitTimeout"`
}

type ServerConfig struct {
	DAPPort  string `yaml:"dapPort"`
	HTTPAddr string `yaml:"httpAddr"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Path:  "/var/jdwpdebugger.log",
			Level: "info",
		},
		WorkRoot: "/var/fanCode/tempDir",
		Compile: CompileConfig{
			Javac:   "javac",
			Args:    []string{"-g"},
			Timeout: 10 * time.Second,
		},
		Launch: LaunchConfig{
			Java:        "java",
			UsePTY:      true,
			OutputLimit: 64 * 1024,
		},
		Attach: AttachConfig{
			Host:            "localhost",
			Port:            5005,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2,
			Timeout:         10 * time.Second,
			AttemptTimeout:  2 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout: 60 * time.Second,
			ExitTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			DAPPort:  "8889",
			HTTPAddr: ":8080",
		},
	}
}

// Load 在默认配置的基础上读取yaml文件和环境变量，path为空时跳过文件
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
		}
		if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv 用环境变量覆盖配置
func (c *Config) ApplyEnv() {
	c.Log.Path = getEnv("JDWP_DEBUGGER_LOG_PATH", c.Log.Path)
	c.Log.Level = getEnv("JDWP_DEBUGGER_LOG_LEVEL", c.Log.Level)
	c.WorkRoot = getEnv("JDWP_DEBUGGER_WORK_ROOT", c.WorkRoot)
	c.Compile.Javac = getEnv("JDWP_DEBUGGER_JAVAC", c.Compile.Javac)
	c.Compile.Timeout = getEnvDuration("JDWP_DEBUGGER_COMPILE_TIMEOUT", c.Compile.Timeout)
	c.Launch.Java = getEnv("JDWP_DEBUGGER_JAVA", c.Launch.Java)
	c.Launch.UsePTY = getEnvBool("JDWP_DEBUGGER_USE_PTY", c.Launch.UsePTY)
	c.Attach.Host = getEnv("JDWP_DEBUGGER_HOST", c.Attach.Host)
	c.Attach.Port = getEnvInt("JDWP_DEBUGGER_PORT", c.Attach.Port)
	c.Attach.Timeout = getEnvDuration("JDWP_DEBUGGER_ATTACH_TIMEOUT", c.Attach.Timeout)
	c.Session.IdleTimeout = getEnvDuration("JDWP_DEBUGGER_IDLE_TIMEOUT", c.Session.IdleTimeout)
}

func (c *Config) Validate() error {
	if c.WorkRoot == "" {
		return fmt.Errorf("workRoot cannot be empty")
	}
	if c.Compile.Javac == "" {
		return fmt.Errorf("compile.javac cannot be empty")
	}
	if c.Launch.Java == "" {
		return fmt.Errorf("launch.java cannot be empty")
	}
	if c.Attach.Host == "" {
		return fmt.Errorf("attach.host cannot be empty")
	}
	if c.Attach.Port < 0 || c.Attach.Port > 65535 {
		return fmt.Errorf("attach.port must be in [0, 65535]")
	}
	if c.Attach.InitialInterval <= 0 || c.Attach.MaxInterval < c.Attach.InitialInterval {
		return fmt.Errorf("attach.initialInterval must be > 0 and <= attach.maxInterval")
	}
	if c.Attach.Multiplier < 1 {
		return fmt.Errorf("attach.multiplier must be >= 1")
	}
	if c.Attach.Timeout <= 0 {
		return fmt.Errorf("attach.timeout must be > 0")
	}
	if c.Session.IdleTimeout < 0 || c.Session.ExitTimeout < 0 {
		return fmt.Errorf("session timeouts cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
