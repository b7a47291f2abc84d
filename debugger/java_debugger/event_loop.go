package java_debugger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fansqz/jdwp-debugger/constants"
	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/fansqz/jdwp-debugger/utils"
	"github.com/sirupsen/logrus"
)

const ackTimeout = 5 * time.Second

var errIdleTimeout = errors.New("no debug event received before idle timeout")

// EventLoop 接收并确认事件批次，直到断点被触发或者被调试程序断开
type EventLoop struct {
	// IdleTimeout 超过该时间没有收到任何事件批次则结束循环，为0时一直等待
	IdleTimeout time.Duration
	// OnBreakpoint 断点被触发时调用，此时被调试程序还没有被恢复
	OnBreakpoint func(location *CodeLocation)
}

// Run 运行事件循环
// 每个批次在处理完以后确认一次，包括让循环结束的批次
func (l *EventLoop) Run(ctx context.Context, conn Connection) (*SessionOutcome, error) {
	loopCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := utils.NewTimeoutManager()
	if l.IdleTimeout > 0 {
		watchdog.Start(loopCtx, l.IdleTimeout, func() {
			cancel(errIdleTimeout)
		})
		defer watchdog.Cancel()
	}

	for {
		batch, err := conn.Receive(loopCtx)
		if err != nil {
			if errors.Is(context.Cause(loopCtx), errIdleTimeout) {
				logrus.Warnf("[EventLoop] idle for %v, stop waiting", l.IdleTimeout)
				return &SessionOutcome{Type: constants.OutcomeTimedOut}, nil
			}
			if ctx.Err() != nil {
				logrus.Infof("[EventLoop] cancelled")
				return &SessionOutcome{Type: constants.OutcomeCancelled}, nil
			}
			return nil, err
		}
		watchdog.Reset()

		outcome, err := l.handleBatch(batch)
		// 不管处理结果如何都要确认
		l.ack(ctx, conn, batch)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			return outcome, nil
		}
	}
}

// handleBatch 处理一个批次，返回非空的outcome表示循环应该结束
// 同一个批次里既有断点又有断开时，以断点为准
func (l *EventLoop) handleBatch(batch *EventBatch) (*SessionOutcome, error) {
	var outcome *SessionOutcome
	for _, event := range batch.Events {
		switch event.Kind {
		case EventBreakpointHit:
			if event.Location != nil {
				logrus.Infof("[EventLoop] Breakpoint hit at line %d in %s", event.Location.Line, event.Location.Type)
			} else {
				logrus.Infof("[EventLoop] Breakpoint hit")
			}
			if l.OnBreakpoint != nil {
				l.OnBreakpoint(event.Location)
			}
			if outcome == nil || outcome.Type != constants.OutcomeHitBreakpoint {
				outcome = &SessionOutcome{Type: constants.OutcomeHitBreakpoint, Location: event.Location}
			}
		case EventDisconnected:
			logrus.Infof("[EventLoop] Debuggee disconnected")
			if outcome == nil {
				outcome = &SessionOutcome{Type: constants.OutcomeDisconnected}
			}
		case EventOther:
			logrus.Debugf("[EventLoop] ignore event %s", event.Name)
		default:
			return outcome, fmt.Errorf("unknown event kind %v", event.Kind)
		}
	}
	return outcome, nil
}

// ack 确认失败只记录日志，连接已经断开时下一次Receive会返回断开事件
func (l *EventLoop) ack(ctx context.Context, conn Connection, batch *EventBatch) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := conn.Ack(ackCtx, batch); err != nil {
		logrus.Warnf("[EventLoop] ack event batch fail, err = %v", err)
	}
}
