package jdwp

import (
	"context"
	"net"
	"strconv"
	"time"

	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/sirupsen/logrus"
)

// RetryPolicy attach的重试策略，间隔按Multiplier指数增长直到MaxInterval
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Timeout 全部尝试的总预算
	Timeout time.Duration
	// AttemptTimeout 单次连接+握手的超时
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Timeout:         10 * time.Second,
		AttemptTimeout:  2 * time.Second,
	}
}

func (p RetryPolicy) next(interval time.Duration) time.Duration {
	if p.Multiplier > 1 {
		interval = time.Duration(float64(interval) * p.Multiplier)
	}
	if p.MaxInterval > 0 && interval > p.MaxInterval {
		interval = p.MaxInterval
	}
	return interval
}

// attemptTimeout 单次尝试不能超过剩余的总预算
func (p RetryPolicy) attemptTimeout(deadline time.Time) time.Duration {
	timeout := p.AttemptTimeout
	if p.Timeout <= 0 {
		return timeout
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if timeout <= 0 || remaining < timeout {
		timeout = remaining
	}
	return timeout
}

// Attach 连接到host:port上监听的调试agent
// 进程启动后agent的监听socket是异步就绪的，所以连接失败会按照policy重试，预算耗尽时返回ConnectTimeout
func Attach(ctx context.Context, host string, port int, policy RetryPolicy) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(policy.Timeout)
	interval := policy.InitialInterval
	if interval <= 0 {
		interval = DefaultRetryPolicy().InitialInterval
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if timeout := policy.attemptTimeout(deadline); timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		conn, err := Dial(attemptCtx, addr)
		cancel()
		if err == nil {
			logrus.Infof("[jdwp] attached to %s after %d attempts", addr, attempt)
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logrus.Debugf("[jdwp] attach attempt %d to %s fail, err = %v", attempt, addr, err)

		if time.Now().Add(interval).After(deadline) {
			return nil, &e.ConnectTimeout{Addr: addr, Attempts: attempt, Err: lastErr}
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		interval = policy.next(interval)
	}
}
