package protocol

import "github.com/fansqz/jdwp-debugger/constants"

// StartDebugRequest 启动调试请求
type StartDebugRequest struct {
	Type constants.DebugOptionType `json:"type"`
	// 请求序列号
	Sequence uint `json:"sequence"`
	// 用户代码，为空时使用示例程序
	Code string `json:"code"`
	// Language 调试语言，目前只支持java
	Language constants.LanguageType `json:"language"`
	// 断点所在行，小于等于0表示不设置断点
	Breakpoint int `json:"breakpoint"`
}

// TerminateRequest 关闭调试
type TerminateRequest struct {
	Type constants.DebugOptionType `json:"type"`
	// 请求序列号
	Sequence uint `json:"sequence"`
}
