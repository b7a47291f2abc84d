package main

import (
	"os"
	"path/filepath"

	"github.com/fansqz/jdwp-debugger/config"
	"github.com/sirupsen/logrus"
)

var logFile *os.File

// SetupLogger 日志写入配置的文件，文件打不开时继续输出到标准错误
func SetupLogger(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("[logger] unknown level %s, use info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.Path == "" {
		return
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		logrus.Warnf("[logger] create log dir fail, err = %v", err)
		return
	}
	// 打开文件
	logFile, err = os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logrus.Warnf("[logger] open log file fail, err = %v", err)
		return
	}
	logrus.SetOutput(logFile)
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
