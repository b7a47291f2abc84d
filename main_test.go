package main

import (
	"context"
	"testing"

	"github.com/fansqz/jdwp-debugger/config"
	"github.com/fansqz/jdwp-debugger/constants"
	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/stretchr/testify/assert"
)

// fakeDebugger 按固定顺序发出事件，block为true时等待ctx结束
type fakeDebugger struct {
	output  func(string)
	block   bool
	started chan *StartOption
}

func newFakeFactory(block bool) (DebuggerFactory, chan *StartOption) {
	started := make(chan *StartOption, 4)
	return func(output func(string)) Debugger {
		return &fakeDebugger{output: output, block: block, started: started}
	}, started
}

func (f *fakeDebugger) StartSession(ctx context.Context, option *StartOption) *SessionReport {
	f.started <- option
	report := &SessionReport{SessionID: "session-1"}
	option.Callback(CompileSuccessEvent)
	f.output("[COD] Start...\n")
	if f.block {
		<-ctx.Done()
		report.Outcome = SessionOutcome{Type: constants.OutcomeCancelled}
		report.ExitCode = -1
	} else {
		option.Callback(NewBreakpointEvent(constants.NewType, []*Breakpoint{NewBreakpoint("MyMainClass.java", option.Breakpoint)}))
		option.Callback(NewStoppedEvent(constants.BreakpointStopped, "MyMainClass.java", option.Breakpoint))
		report.Outcome = SessionOutcome{
			Type:     constants.OutcomeHitBreakpoint,
			Location: &CodeLocation{Type: "MyMainClass", Method: "main", Line: option.Breakpoint},
		}
	}
	option.Callback(NewExitedEvent(report.ExitCode, ""))
	option.Callback(NewTerminatedEvent(report))
	return report
}

func TestPerSessionPort(t *testing.T) {
	cfg := config.Default()
	cfg.Attach.Port = 5005

	session := perSessionPort(cfg)
	assert.Equal(t, 0, session.Attach.Port)
	assert.Equal(t, cfg.Attach.Host, session.Attach.Host)
	assert.Equal(t, 5005, cfg.Attach.Port)
}
