package constants

// DebugOptionType 调试请求操作类型
type DebugOptionType string

const (
	// StartDebug 开始一次调试会话：编译、启动、attach、设置断点、等待事件
	StartDebug DebugOptionType = "start"
	// Terminate 终止当前的调试会话
	Terminate DebugOptionType = "terminate"
)

type DebugEventType string

const (
	BreakpointEvent DebugEventType = "breakpoint"
	OutputEvent     DebugEventType = "output"
	StoppedEvent    DebugEventType = "stopped"
	CompileEvent    DebugEventType = "compile"
	LaunchEvent     DebugEventType = "launch"
	AttachEvent     DebugEventType = "attach"
	ExitedEvent     DebugEventType = "exited"
	TerminatedEvent DebugEventType = "terminated"
)

// BreakpointReasonType 断点改变类型
type BreakpointReasonType string

const (
	NewType     BreakpointReasonType = "new"
	SkippedType BreakpointReasonType = "skipped"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	BreakpointStopped StoppedReasonType = "breakpoint"
	ExitedNormally    StoppedReasonType = "exited-normally"
)

// OutcomeType 调试会话的结束方式
type OutcomeType string

const (
	// OutcomeHitBreakpoint 断点被触发
	OutcomeHitBreakpoint OutcomeType = "hit-breakpoint"
	// OutcomeDisconnected 被调试程序断开了连接（一般是运行结束）
	OutcomeDisconnected OutcomeType = "disconnected"
	// OutcomeCancelled 调用方取消
	OutcomeCancelled OutcomeType = "cancelled"
	// OutcomeTimedOut 长时间没有收到任何事件
	OutcomeTimedOut OutcomeType = "timed-out"
	// OutcomeError 会话在事件循环之前或之中失败
	OutcomeError OutcomeType = "error"
)

// SkipReasonType 断点没有被设置的原因
type SkipReasonType string

const (
	SkipNone            SkipReasonType = ""
	SkipTypeNotResolved SkipReasonType = "type-not-resolved"
	SkipNoCodeAtLine    SkipReasonType = "no-code-at-line"
	SkipNotRequested    SkipReasonType = "not-requested"
)
