package debugger

import (
	"fmt"

	"github.com/fansqz/jdwp-debugger/constants"
)

// StartOption 启动调试的参数
type StartOption struct {
	// Code 用户代码
	Code string
	// Breakpoint 断点所在行，从1开始，小于等于0表示不设置断点
	Breakpoint int
	// Callback 事件回调
	Callback NotificationCallback
}

// SourceUnit 用户代码以及从中解析出来的入口类
type SourceUnit struct {
	Code string
	// Package 包名，没有声明时为空
	Package string
	// ClassName 入口类的简单名称
	ClassName string
	// FileName 源文件名，有public顶层类时以它命名，为空时使用ClassName
	FileName string
	// EntryPoint 入口类的全限定名，用于启动程序以及在调试协议中查找类型
	EntryPoint string
}

func (s *SourceUnit) SourceFileName() string {
	if s.FileName != "" {
		return s.FileName
	}
	return s.ClassName + ".java"
}

// CompiledArtifact 编译产物
type CompiledArtifact struct {
	WorkPath   string
	SourceFile string
	ClassFile  string
	EntryPoint string
}

// ResolvedType 调试连接上解析出来的类型
type ResolvedType struct {
	Name      string
	Signature string
	// Handle 协议层的类型对象，只能在解析它的连接上使用
	Handle interface{}
}

// CodeLocation 源码行对应的可执行位置
type CodeLocation struct {
	Type   string `json:"type"`
	Method string `json:"method"`
	Line   int    `json:"line"`
	Index  uint64 `json:"index"`
	// Handle 协议层的位置对象
	Handle interface{} `json:"-"`
}

func (c *CodeLocation) String() string {
	return fmt.Sprintf("%s.%s:%d", c.Type, c.Method, c.Line)
}

// BreakpointRequest 已经设置的断点
type BreakpointRequest struct {
	ID       int32
	Location *CodeLocation
}

// EventKind 协议事件的种类，是一个封闭集合
type EventKind int

const (
	// EventOther 其他所有事件，一律忽略
	EventOther EventKind = iota
	// EventBreakpointHit 断点被触发
	EventBreakpointHit
	// EventDisconnected 被调试程序断开
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventOther:
		return "other"
	case EventBreakpointHit:
		return "breakpoint-hit"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ProtocolEvent 协议事件
type ProtocolEvent struct {
	Kind EventKind
	// Location 只有EventBreakpointHit有
	Location *CodeLocation
	// Name 协议层的事件名称，用于日志
	Name string
}

// EventBatch 需要整体确认的一批事件
type EventBatch struct {
	Events []ProtocolEvent
	Handle interface{}
}

// SessionOutcome 事件循环的结束方式
type SessionOutcome struct {
	Type     constants.OutcomeType `json:"type"`
	Location *CodeLocation         `json:"location,omitempty"`
}

// SessionReport 一次调试会话的结果
type SessionReport struct {
	SessionID string                   `json:"sessionId"`
	Outcome   SessionOutcome           `json:"outcome"`
	Skip      constants.SkipReasonType `json:"skip,omitempty"`
	// AliveAtHit 断点触发时被调试进程仍在运行
	AliveAtHit bool   `json:"aliveAtHit"`
	ExitCode   int    `json:"exitCode"`
	Output     string `json:"output"`
	Err        error  `json:"-"`
}

// Breakpoint 表示断点
type Breakpoint struct {
	File string // 文件名称
	Line int    // 行号
}

func NewBreakpoint(file string, line int) *Breakpoint {
	return &Breakpoint{file, line}
}

// 定义的一些Event
var (
	CompileSuccessEvent = NewCompileEvent(true, "用户代码编译成功")
	LaunchSuccessEvent  = NewLaunchEvent(true, "目标代码加载成功")
	LaunchFailEvent     = NewLaunchEvent(false, "目标代码加载失败")
)

// BreakpointEvent 断点事件
// 该event指示断点被设置或者被跳过
type BreakpointEvent struct {
	Reason      constants.BreakpointReasonType
	Skip        constants.SkipReasonType
	Breakpoints []*Breakpoint
}

func NewBreakpointEvent(reason constants.BreakpointReasonType, breakpoints []*Breakpoint) *BreakpointEvent {
	return &BreakpointEvent{
		Reason:      reason,
		Breakpoints: breakpoints,
	}
}

func NewSkippedBreakpointEvent(skip constants.SkipReasonType, breakpoints []*Breakpoint) *BreakpointEvent {
	return &BreakpointEvent{
		Reason:      constants.SkippedType,
		Skip:        skip,
		Breakpoints: breakpoints,
	}
}

// OutputEvent
// 用户程序输出
type OutputEvent struct {
	Output string // 输出内容
}

func NewOutputEvent(output string) *OutputEvent {
	return &OutputEvent{
		Output: output,
	}
}

// AttachEvent
// 调试器已经连接到被调试程序
type AttachEvent struct {
	Description string
}

func NewAttachEvent(description string) *AttachEvent {
	return &AttachEvent{Description: description}
}

// StoppedEvent
// 该event表明被调试进程因为断点停止过
type StoppedEvent struct {
	Reason constants.StoppedReasonType // 停止执行的原因
	File   string                      // 当前停止在哪个文件
	Line   int                         // 停止在某行
}

func NewStoppedEvent(reason constants.StoppedReasonType, file string, line int) *StoppedEvent {
	return &StoppedEvent{
		Reason: reason,
		File:   file,
		Line:   line,
	}
}

// ExitedEvent
// 该event表明被调试对象已经退出并返回exit code
type ExitedEvent struct {
	ExitCode int
	Message  string
}

func NewExitedEvent(code int, message string) *ExitedEvent {
	return &ExitedEvent{
		ExitCode: code,
		Message:  message,
	}
}

// TerminatedEvent
// 调试会话结束，携带会话报告
type TerminatedEvent struct {
	Report *SessionReport
}

func NewTerminatedEvent(report *SessionReport) *TerminatedEvent {
	return &TerminatedEvent{Report: report}
}

// CompileEvent
// 编译事件
type CompileEvent struct {
	Success bool
	Message string // 编译产生的信息
}

func NewCompileEvent(success bool, message string) *CompileEvent {
	return &CompileEvent{
		Success: success,
		Message: message,
	}
}

// LaunchEvent
// 调试资源准备成功
type LaunchEvent struct {
	Success bool
	Message string
}

func NewLaunchEvent(success bool, message string) *LaunchEvent {
	return &LaunchEvent{
		Success: success,
		Message: message,
	}
}
