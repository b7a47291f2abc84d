package utils

import (
	"context"
	"github.com/fansqz/jdwp-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
	"time"
)

// TimeoutManager 一个计时器
// 如果在timeout时间内没有执行reset命令，就会执行fun函数
type TimeoutManager struct {
	timer         *time.Timer
	timeout       time.Duration
	resetChannel  chan struct{}
	cancelChannel chan struct{}
	done          chan struct{}
	fun           func()
}

// NewTimeoutManager 创建一个新的计时器实例
func NewTimeoutManager() *TimeoutManager {
	return &TimeoutManager{}
}

// Start 开始计时
// 在timeout时间内没有执行reset命令，就会执行fun函数，fun最多执行一次
func (t *TimeoutManager) Start(ctx context.Context, timeout time.Duration, option func()) {
	t.timer = time.NewTimer(timeout)
	t.timeout = timeout
	t.fun = option
	t.resetChannel = make(chan struct{})
	t.cancelChannel = make(chan struct{})
	t.done = make(chan struct{})
	gosync.Go(ctx, func(ctx context.Context) {
		defer close(t.done)
		for {
			select {
			case <-t.timer.C:
				logrus.Infof("[TimeoutManager] Timer expired, performing action")
				t.fun()
				return
			case <-t.resetChannel:
				t.timer.Reset(t.timeout)
			case <-t.cancelChannel:
				logrus.Debugf("[TimeoutManager] cancel")
				t.timer.Stop()
				return
			case <-ctx.Done():
				t.timer.Stop()
				return
			}
		}
	})
}

// Reset 重置计时器，计时器已经结束时无效果
func (t *TimeoutManager) Reset() {
	if t.done == nil {
		return
	}
	select {
	case t.resetChannel <- struct{}{}:
	case <-t.done:
	}
}

// Cancel 取消计时，计时器已经结束时无效果
func (t *TimeoutManager) Cancel() {
	if t.done == nil {
		return
	}
	select {
	case t.cancelChannel <- struct{}{}:
	case <-t.done:
	}
	<-t.done
}
