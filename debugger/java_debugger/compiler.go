package java_debugger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	. "github.com/fansqz/jdwp-debugger/debugger"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/sirupsen/logrus"
)

// JavaCompiler 调用javac编译用户代码
type JavaCompiler struct {
	// Javac javac可执行文件
	Javac string
	// Args 额外的编译参数，一般是 -g
	Args    []string
	Timeout time.Duration
	// Stdout Stderr 编译器输出的转发目标，为空时继承当前进程
	Stdout io.Writer
	Stderr io.Writer
}

func NewJavaCompiler(javac string, args []string, timeout time.Duration) *JavaCompiler {
	return &JavaCompiler{
		Javac:   javac,
		Args:    args,
		Timeout: timeout,
	}
}

// Compile 把源码写入workPath并编译，源文件和class文件都保留在workPath中
func (j *JavaCompiler) Compile(ctx context.Context, workPath string, unit *SourceUnit) (*CompiledArtifact, error) {
	if err := os.MkdirAll(workPath, 0755); err != nil {
		logrus.Errorf("[JavaCompiler] create work path fail, err = %v", err)
		return nil, err
	}
	sourceFile := path.Join(workPath, unit.SourceFileName())
	if err := os.WriteFile(sourceFile, []byte(unit.Code), 0644); err != nil {
		logrus.Errorf("[JavaCompiler] write source fail, err = %v", err)
		return nil, err
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	args := make([]string, 0, len(j.Args)+3)
	args = append(args, j.Args...)
	args = append(args, "-d", ".", unit.SourceFileName())
	cmd := exec.CommandContext(ctx, j.Javac, args...)
	cmd.Dir = workPath
	// 被杀死以后不再等待子进程持有的输出管道
	cmd.WaitDelay = time.Second
	var errBuffer bytes.Buffer
	cmd.Stdout = j.stdout()
	cmd.Stderr = io.MultiWriter(j.stderr(), &errBuffer)

	logrus.Infof("[JavaCompiler] %s %s", j.Javac, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		message := maskPath(errBuffer.String(), []string{workPath}, "/")
		// 调用方取消不算编译失败
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("compile cancelled: %w", ctx.Err())
		}
		// 如果是由于超时导致的错误，则返回自定义错误
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &e.CompileError{ExitCode: -1, Message: "编译超时\n" + message}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &e.CompileError{ExitCode: exitErr.ExitCode(), Message: message}
		}
		return nil, fmt.Errorf("run %s: %w", j.Javac, err)
	}

	classFile := path.Join(workPath, filepath.FromSlash(strings.ReplaceAll(unit.EntryPoint, ".", "/"))+".class")
	return &CompiledArtifact{
		WorkPath:   workPath,
		SourceFile: sourceFile,
		ClassFile:  classFile,
		EntryPoint: unit.EntryPoint,
	}, nil
}

func (j *JavaCompiler) stdout() io.Writer {
	if j.Stdout == nil {
		return os.Stdout
	}
	return j.Stdout
}

func (j *JavaCompiler) stderr() io.Writer {
	if j.Stderr == nil {
		return os.Stderr
	}
	return j.Stderr
}

// maskPath 屏蔽编译信息中的工作目录
func maskPath(errorMessage string, excludedPaths []string, replacementPath string) string {
	if errorMessage == "" {
		return ""
	}
	for _, excludedPath := range excludedPaths {
		// 构建正则表达式，匹配包含敏感路径的错误消息
		pattern := regexp.QuoteMeta(strings.TrimSuffix(excludedPath, "/") + "/")
		re := regexp.MustCompile(pattern)
		errorMessage = re.ReplaceAllString(errorMessage, replacementPath)
	}
	return errorMessage
}
