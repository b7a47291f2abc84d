package utils

import "sync"

const (
	// Launching 被调试进程已经fork，尚未确认运行
	Launching = "launching"
	// Running 被调试进程运行中
	Running = "running"
	// Exited 被调试进程已经退出并被wait
	Exited = "exited"

	// Connecting 调试连接握手中
	Connecting = "connecting"
	// Attached 调试连接可用
	Attached = "attached"
	// Disposed 调试连接已经释放
	Disposed = "disposed"
)

// StatusManager 记录进程或者连接的状态
type StatusManager struct {
	lock   sync.RWMutex
	status string
}

func NewStatusManager(initial string) *StatusManager {
	return &StatusManager{
		status: initial,
	}
}

func (s *StatusManager) Set(status string) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() string {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...string) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}

// Transition 只有当前状态属于from时才切换到to，返回是否切换成功
func (s *StatusManager) Transition(to string, from ...string) bool {
	defer s.lock.Unlock()
	s.lock.Lock()
	for _, status := range from {
		if s.status == status {
			s.status = to
			return true
		}
	}
	return false
}
