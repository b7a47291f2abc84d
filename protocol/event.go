package protocol

import (
	"github.com/fansqz/jdwp-debugger/constants"
	"github.com/fansqz/jdwp-debugger/debugger"
)

// CompileEvent
// 编译事件
type CompileEvent struct {
	Event   constants.DebugEventType `json:"event"`
	Success bool                     `json:"success"`
	Message string                   `json:"message"` // 编译产生的信息
}

// LaunchEvent
// 加载用户代码事件
type LaunchEvent struct {
	Event   constants.DebugEventType `json:"event"`
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
}

// AttachEvent
// 调试器已经连接到被调试程序
type AttachEvent struct {
	Event       constants.DebugEventType `json:"event"`
	Description string                   `json:"description"`
}

// BreakpointEvent 断点事件
// 该event指示断点被设置或者被跳过
type BreakpointEvent struct {
	Event       constants.DebugEventType       `json:"event"`
	Reason      constants.BreakpointReasonType `json:"reason"`
	Skip        constants.SkipReasonType       `json:"skip,omitempty"`
	Breakpoints []int                          `json:"breakpoints"`
}

// OutputEvent
// 该事件表明目标已经产生了一些输出。
type OutputEvent struct {
	Event  constants.DebugEventType `json:"event"`
	Output string                   `json:"output"` // 输出内容
}

// StoppedEvent
// 该event表明被调试进程在断点处停止过，确认以后会继续运行
type StoppedEvent struct {
	Event  constants.DebugEventType    `json:"event"`
	Reason constants.StoppedReasonType `json:"reason"` // 停止执行的原因
	Line   int                         `json:"line"`   // 停止在某行
}

// ExitedEvent
// 该event表明被调试对象已经退出并返回exit code。
type ExitedEvent struct {
	Event    constants.DebugEventType `json:"event"`
	ExitCode int                      `json:"exitCode"`
	Message  string                   `json:"message"`
}

// TerminatedEvent
// 调试会话结束
type TerminatedEvent struct {
	Event   constants.DebugEventType `json:"event"`
	Outcome constants.OutcomeType    `json:"outcome"`
}

// ConvertEvent 把调试器的事件转换成协议中的事件，不认识的事件返回nil
func ConvertEvent(event interface{}) interface{} {
	switch event := event.(type) {
	case *debugger.CompileEvent:
		return &CompileEvent{Event: constants.CompileEvent, Success: event.Success, Message: event.Message}
	case *debugger.LaunchEvent:
		return &LaunchEvent{Event: constants.LaunchEvent, Success: event.Success, Message: event.Message}
	case *debugger.AttachEvent:
		return &AttachEvent{Event: constants.AttachEvent, Description: event.Description}
	case *debugger.BreakpointEvent:
		lines := make([]int, 0, len(event.Breakpoints))
		for _, bp := range event.Breakpoints {
			lines = append(lines, bp.Line)
		}
		return &BreakpointEvent{Event: constants.BreakpointEvent, Reason: event.Reason, Skip: event.Skip, Breakpoints: lines}
	case *debugger.OutputEvent:
		return &OutputEvent{Event: constants.OutputEvent, Output: event.Output}
	case *debugger.StoppedEvent:
		return &StoppedEvent{Event: constants.StoppedEvent, Reason: event.Reason, Line: event.Line}
	case *debugger.ExitedEvent:
		return &ExitedEvent{Event: constants.ExitedEvent, ExitCode: event.ExitCode, Message: event.Message}
	case *debugger.TerminatedEvent:
		answer := &TerminatedEvent{Event: constants.TerminatedEvent}
		if event.Report != nil {
			answer.Outcome = event.Report.Outcome.Type
		}
		return answer
	default:
		return nil
	}
}
