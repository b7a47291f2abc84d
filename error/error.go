package error

import (
	"errors"
	"fmt"
)

var (
	ErrCompileFailed        = errors.New("Compilation error")
	ErrLaunchFailed         = errors.New("Launch error")
	ErrLanguageNotSupported = errors.New("This language is not supported")
	ErrDebuggerIsClosed     = errors.New("debug is closed")
	ErrEntryPointNotFound   = errors.New("no public class declaring main was found")
	ErrDuplicateBreakpoint  = errors.New("a breakpoint is already installed at this location")
	ErrForeignType          = errors.New("type was not resolved on this connection")
)

// CompileError 编译器以非0状态码退出
type CompileError struct {
	ExitCode int
	// Message 编译器的错误输出，工作目录已经被屏蔽
	Message string
}

func (c *CompileError) Error() string {
	if c.Message == "" {
		return fmt.Sprintf("compile failed, exit code = %d", c.ExitCode)
	}
	return fmt.Sprintf("compile failed, exit code = %d\n%s", c.ExitCode, c.Message)
}

func (c *CompileError) Unwrap() error {
	return ErrCompileFailed
}

// LaunchError 被调试进程无法启动
type LaunchError struct {
	Err error
}

func (l *LaunchError) Error() string {
	return fmt.Sprintf("launch debuggee fail, err = %v", l.Err)
}

func (l *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, l.Err}
}

// ConnectTimeout 在重试预算内没能attach到调试agent
type ConnectTimeout struct {
	Addr     string
	Attempts int
	// Err 最后一次连接失败的原因
	Err error
}

func (c *ConnectTimeout) Error() string {
	return fmt.Sprintf("attach to %s timed out after %d attempts, last err = %v", c.Addr, c.Attempts, c.Err)
}

func (c *ConnectTimeout) Unwrap() error {
	return c.Err
}

// AbsentLineInfoError 编译产物完全没有行号信息
type AbsentLineInfoError struct {
	Type string
}

func (a *AbsentLineInfoError) Error() string {
	return fmt.Sprintf("type %s has no line number information", a.Type)
}

// ProtocolDisposedError 连接已经被释放后仍然调用了协议操作
type ProtocolDisposedError struct {
	Op string
}

func (p *ProtocolDisposedError) Error() string {
	return fmt.Sprintf("%s: connection is disposed", p.Op)
}

func (p *ProtocolDisposedError) Unwrap() error {
	return ErrDebuggerIsClosed
}

// SessionError 调试会话中其他所有失败的包装
type SessionError struct {
	Stage string
	Err   error
}

func (s *SessionError) Error() string {
	return fmt.Sprintf("debug session failed at %s: %v", s.Stage, s.Err)
}

func (s *SessionError) Unwrap() error {
	return s.Err
}
