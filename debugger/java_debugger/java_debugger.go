package java_debugger

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/fansqz/jdwp-debugger/config"
	"github.com/fansqz/jdwp-debugger/constants"
	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/fansqz/jdwp-debugger/debugger/java_debugger/jdwp"
	. "github.com/fansqz/jdwp-debugger/debugger/utils"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/fansqz/jdwp-debugger/utils"
	"github.com/sirupsen/logrus"
)

// DemoCode 没有提供代码时使用的示例程序
// 启动以后先等待一段时间，让调试器有机会在循环开始之前连上
const DemoCode = `public class MyMainClass {
  public static void main(String[] args) throws InterruptedException {
    System.out.println("[COD] Start...");
    // give the debugger time to attach
    Thread.sleep(2000);
    int x = 10;
    for (int i = 0; i < 3; i++) {
      x += i;
      System.out.println("[COD] i=" + i + ", x=" + x);
    }
    System.out.println("[COD] End: x=" + x);
  }
}
`

// DemoBreakpoint 示例程序中循环体第一行
const DemoBreakpoint = 8

// Option 调试器的配置
type Option struct {
	// Host Port 被调试程序的agent地址，Port为0时每次会话分配空闲端口
	Host string
	Port int
	// WorkRoot 每个会话在WorkRoot下有自己的工作目录
	WorkRoot string
	// IdleTimeout 事件循环的空闲超时
	IdleTimeout time.Duration
	// ExitTimeout 释放连接以后等待被调试程序退出的最长时间，超时后杀死进程
	ExitTimeout time.Duration

	Compiler Compiler
	Launcher Launcher
	Client   ProtocolClient
}

// JavaDebugger 编排一次完整的java调试会话
type JavaDebugger struct {
	option *Option
}

func NewJavaDebugger(option *Option) *JavaDebugger {
	return &JavaDebugger{option: option}
}

// NewJavaDebuggerWithConfig 使用javac、java和jdwp客户端创建调试器
// output 接收被调试程序的实时输出，可以为空
func NewJavaDebuggerWithConfig(cfg *config.Config, output func(string)) *JavaDebugger {
	launcher := NewJavaLauncher(cfg.Launch.Java, cfg.Launch.UsePTY, cfg.Launch.OutputLimit)
	launcher.Output = output
	return NewJavaDebugger(&Option{
		Host:        cfg.Attach.Host,
		Port:        cfg.Attach.Port,
		WorkRoot:    cfg.WorkRoot,
		IdleTimeout: cfg.Session.IdleTimeout,
		ExitTimeout: cfg.Session.ExitTimeout,
		Compiler:    NewJavaCompiler(cfg.Compile.Javac, cfg.Compile.Args, cfg.Compile.Timeout),
		Launcher:    launcher,
		Client: NewJDWPClient(jdwp.RetryPolicy{
			InitialInterval: cfg.Attach.InitialInterval,
			MaxInterval:     cfg.Attach.MaxInterval,
			Multiplier:      cfg.Attach.Multiplier,
			Timeout:         cfg.Attach.Timeout,
			AttemptTimeout:  cfg.Attach.AttemptTimeout,
		}),
	})
}

// session 一次会话过程中的状态
type session struct {
	id       string
	option   *StartOption
	callback NotificationCallback
	log      *logrus.Entry
	report   *SessionReport

	artifact *CompiledArtifact
	process  Process
	conn     Connection
	// kill 结束时是否需要杀死被调试程序
	kill bool
}

// StartSession 编译 -> 启动 -> 连接 -> 设置断点 -> 事件循环 -> 释放连接 -> 等待进程
// 不管从哪一步退出，已经获取的连接都会先释放，已经启动的进程都会被等待
func (j *JavaDebugger) StartSession(ctx context.Context, option *StartOption) *SessionReport {
	s := &session{
		id:       utils.GetUUID(),
		option:   option,
		callback: option.Callback,
	}
	if s.callback == nil {
		s.callback = func(interface{}) {}
	}
	s.log = logrus.WithField("session", s.id)
	s.report = &SessionReport{SessionID: s.id, ExitCode: -1}

	func() {
		defer j.teardown(s)
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorf("[JavaDebugger] session panic, err = %v", r)
				s.kill = true
				j.fail(s, "panic", fmt.Errorf("%v", r))
			}
		}()
		j.run(ctx, s)
	}()

	if s.report.Err != nil {
		s.report.Outcome.Type = constants.OutcomeError
	}
	s.log.Infof("[JavaDebugger] Debug session ended, outcome = %s, exit code = %d", s.report.Outcome.Type, s.report.ExitCode)
	s.callback(NewTerminatedEvent(s.report))
	return s.report
}

func (j *JavaDebugger) run(ctx context.Context, s *session) {
	unit, err := ParseSourceUnit(s.option.Code)
	if err != nil {
		s.callback(NewCompileEvent(false, err.Error()))
		j.fail(s, "parse", err)
		return
	}

	// 编译
	workPath := path.Join(j.option.WorkRoot, s.id)
	s.artifact, err = j.option.Compiler.Compile(ctx, workPath, unit)
	if err != nil {
		if ctx.Err() != nil {
			s.log.Infof("[JavaDebugger] cancelled while compiling")
			s.report.Outcome.Type = constants.OutcomeCancelled
			return
		}
		var compileErr *e.CompileError
		if errors.As(err, &compileErr) {
			s.callback(NewCompileEvent(false, compileErr.Message))
		} else {
			s.callback(NewCompileEvent(false, err.Error()))
		}
		j.fail(s, "compile", err)
		return
	}
	s.log.Infof("[JavaDebugger] Compiled %s", s.artifact.SourceFile)
	s.callback(CompileSuccessEvent)

	// 启动
	port := j.option.Port
	if port == 0 {
		if port, err = FreePort(); err != nil {
			j.fail(s, "launch", err)
			return
		}
	}
	s.process, err = j.option.Launcher.Launch(ctx, s.artifact, port)
	if err != nil {
		s.callback(LaunchFailEvent)
		j.fail(s, "launch", err)
		return
	}
	s.callback(LaunchSuccessEvent)

	// 连接
	s.conn, err = j.option.Client.Connect(ctx, j.option.Host, port)
	if err != nil {
		s.kill = true
		if ctx.Err() != nil {
			s.report.Outcome.Type = constants.OutcomeCancelled
			return
		}
		j.fail(s, "attach", err)
		return
	}
	s.log.Infof("[JavaDebugger] Connected to VM: %s", s.conn.Description())
	s.callback(NewAttachEvent(s.conn.Description()))

	// 设置断点，找不到类型或者代码行时跳过
	if err = j.setBreakpoint(ctx, s, unit); err != nil {
		s.kill = true
		j.fail(s, "breakpoint", err)
		return
	}

	// 事件循环
	loop := &EventLoop{
		IdleTimeout: j.option.IdleTimeout,
		OnBreakpoint: func(location *CodeLocation) {
			s.report.AliveAtHit = s.process.Alive()
			line := 0
			if location != nil {
				line = location.Line
			}
			s.callback(NewStoppedEvent(constants.BreakpointStopped, s.artifact.SourceFile, line))
		},
	}
	outcome, err := loop.Run(ctx, s.conn)
	if err != nil {
		s.kill = true
		j.fail(s, "observe", err)
		return
	}
	s.report.Outcome = *outcome
	if outcome.Type == constants.OutcomeCancelled || outcome.Type == constants.OutcomeTimedOut {
		s.kill = true
	}
}

func (j *JavaDebugger) setBreakpoint(ctx context.Context, s *session, unit *SourceUnit) error {
	line := s.option.Breakpoint
	breakpoints := []*Breakpoint{NewBreakpoint(s.artifact.SourceFile, line)}
	if line <= 0 {
		s.report.Skip = constants.SkipNotRequested
		return nil
	}

	rt, ok, err := s.conn.ResolveType(ctx, s.artifact.EntryPoint)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warnf("[JavaDebugger] Class %s not found!", s.artifact.EntryPoint)
		s.report.Skip = constants.SkipTypeNotResolved
		s.callback(NewSkippedBreakpointEvent(constants.SkipTypeNotResolved, breakpoints))
		return nil
	}

	location, ok, err := s.conn.ResolveLocation(ctx, rt, line)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warnf("[JavaDebugger] No code at line %d in %s", line, rt.Name)
		if info, err := AnalyzeJavaSource([]byte(unit.Code)); err == nil {
			if nearest := info.NearestStatementLine(line); nearest != 0 {
				s.log.Infof("[JavaDebugger] nearest statement is at line %d", nearest)
			}
		}
		s.report.Skip = constants.SkipNoCodeAtLine
		s.callback(NewSkippedBreakpointEvent(constants.SkipNoCodeAtLine, breakpoints))
		return nil
	}

	if _, err = s.conn.SetBreakpoint(ctx, location); err != nil {
		return err
	}
	s.log.Infof("[JavaDebugger] Breakpoint set at line %d in %s", line, rt.Name)
	s.callback(NewBreakpointEvent(constants.NewType, breakpoints))
	return nil
}

// teardown 先释放连接，再等待进程，清理中的错误只记录日志
func (j *JavaDebugger) teardown(s *session) {
	if s.conn != nil {
		if err := s.conn.Dispose(); err != nil {
			s.log.Warnf("[JavaDebugger] dispose connection fail, err = %v", err)
		}
	}
	if s.process == nil {
		return
	}
	if s.kill {
		if err := s.process.Kill(); err != nil {
			s.log.Warnf("[JavaDebugger] kill debuggee fail, err = %v", err)
		}
	}
	if j.option.ExitTimeout > 0 {
		timer := time.AfterFunc(j.option.ExitTimeout, func() {
			s.log.Warnf("[JavaDebugger] debuggee did not exit in %v, kill it", j.option.ExitTimeout)
			_ = s.process.Kill()
		})
		defer timer.Stop()
	}
	code, err := s.process.Wait()
	if err != nil {
		s.log.Warnf("[JavaDebugger] wait debuggee fail, err = %v", err)
	}
	s.report.ExitCode = code
	s.report.Output = s.process.Output()
	s.callback(NewExitedEvent(code, ""))
}

func (j *JavaDebugger) fail(s *session, stage string, err error) {
	s.log.Errorf("[JavaDebugger] %s fail, err = %v", stage, err)
	s.report.Err = &e.SessionError{Stage: stage, Err: err}
}
