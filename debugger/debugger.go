package debugger

import (
	"context"
)

type NotificationCallback func(interface{})

// Debugger
// 用户的一次调试过程：编译 -> 启动 -> attach -> 设置断点 -> 观察事件 -> 清理
// 一个会话独占它的进程和调试连接
type Debugger interface {
	// StartSession 同步执行整个会话，任何失败都体现在返回的SessionReport中
	StartSession(ctx context.Context, option *StartOption) *SessionReport
}

// Compiler 把源码编译到workPath下
type Compiler interface {
	Compile(ctx context.Context, workPath string, unit *SourceUnit) (*CompiledArtifact, error)
}

// Launcher 以调试模式启动编译产物，agent监听port，启动后立即返回，不等待agent就绪
type Launcher interface {
	Launch(ctx context.Context, artifact *CompiledArtifact, port int) (Process, error)
}

// Process 被调试进程
type Process interface {
	Pid() int
	// Alive 进程尚未退出
	Alive() bool
	// Wait 等待进程退出，只会真正wait一次，之后返回缓存的退出码
	Wait() (int, error)
	Kill() error
	// Output 进程合并后的标准输出和标准错误
	Output() string
}

// ProtocolClient 调试协议客户端
type ProtocolClient interface {
	// Connect 连接到host:port上的调试agent，内部带有重试
	Connect(ctx context.Context, host string, port int) (Connection, error)
}

// Connection 一个调试连接，释放以后所有由它产生的类型和断点都失效
type Connection interface {
	// Description 被调试虚拟机的描述
	Description() string
	// ResolveType 找不到类型时返回(nil, false, nil)
	ResolveType(ctx context.Context, name string) (*ResolvedType, bool, error)
	// ResolveLocation 该行没有可执行代码时返回(nil, false, nil)
	ResolveLocation(ctx context.Context, t *ResolvedType, line int) (*CodeLocation, bool, error)
	SetBreakpoint(ctx context.Context, location *CodeLocation) (*BreakpointRequest, error)
	// Receive 阻塞等待下一个事件批次
	Receive(ctx context.Context) (*EventBatch, error)
	// Ack 确认一个事件批次，每个批次必须确认且只确认一次
	Ack(ctx context.Context, batch *EventBatch) error
	// Dispose 重复调用无效果
	Dispose() error
}
