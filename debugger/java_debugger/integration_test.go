package java_debugger

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/fansqz/jdwp-debugger/config"
	"github.com/fansqz/jdwp-debugger/constants"
	. "github.com/fansqz/jdwp-debugger/debugger"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireJDK 没有安装jdk时跳过
func requireJDK(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skip jdk tests in short mode")
	}
	for _, bin := range []string{"javac", "java"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found", bin)
		}
	}
}

func newRealDebugger(t *testing.T) *JavaDebugger {
	cfg := config.Default()
	cfg.WorkRoot = t.TempDir()
	cfg.Attach.Port = 0
	cfg.Attach.Timeout = 20 * time.Second
	cfg.Session.IdleTimeout = 30 * time.Second
	return NewJavaDebuggerWithConfig(cfg, nil)
}

func TestJavaCompiler(t *testing.T) {
	requireJDK(t)
	unit, err := ParseSourceUnit(DemoCode)
	require.NoError(t, err)
	workPath := t.TempDir()

	artifact, err := NewJavaCompiler("javac", []string{"-g"}, time.Minute).Compile(context.Background(), workPath, unit)
	require.NoError(t, err)
	assert.Equal(t, unit.EntryPoint, artifact.EntryPoint)
	assert.FileExists(t, artifact.SourceFile)
	assert.FileExists(t, artifact.ClassFile)

	broken := &SourceUnit{Code: "public class Broken { public static void main(String[] a) { int x = } }", ClassName: "Broken", EntryPoint: "Broken"}
	brokenPath := t.TempDir()
	_, err = NewJavaCompiler("javac", nil, time.Minute).Compile(context.Background(), brokenPath, broken)
	var compileErr *e.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.NotZero(t, compileErr.ExitCode)
	assert.Contains(t, compileErr.Message, "Broken.java")
	assert.NotContains(t, compileErr.Message, brokenPath)
}

func TestIntegrationHitBreakpoint(t *testing.T) {
	requireJDK(t)
	var events []interface{}
	report := newRealDebugger(t).StartSession(context.Background(), &StartOption{
		Code:       DemoCode,
		Breakpoint: DemoBreakpoint,
		Callback: func(event interface{}) {
			events = append(events, event)
		},
	})

	require.NoError(t, report.Err)
	assert.Equal(t, constants.OutcomeHitBreakpoint, report.Outcome.Type)
	require.NotNil(t, report.Outcome.Location)
	assert.Equal(t, DemoBreakpoint, report.Outcome.Location.Line)
	assert.Equal(t, "MyMainClass", report.Outcome.Location.Type)
	assert.True(t, report.AliveAtHit)
	assert.Equal(t, 0, report.ExitCode)
	// 断点被确认以后程序继续运行到结束
	assert.Contains(t, report.Output, "[COD] End: x=13")
	assert.Equal(t, 3, strings.Count(report.Output, "[COD] i="))

	_, ok := events[len(events)-1].(*TerminatedEvent)
	assert.True(t, ok)
}

func TestIntegrationNoCodeAtLine(t *testing.T) {
	requireJDK(t)
	// 最后一行是类的右括号
	line := strings.Count(DemoCode, "\n")
	report := newRealDebugger(t).StartSession(context.Background(), &StartOption{
		Code:       DemoCode,
		Breakpoint: line,
	})

	require.NoError(t, report.Err)
	assert.Equal(t, constants.SkipNoCodeAtLine, report.Skip)
	assert.Equal(t, constants.OutcomeDisconnected, report.Outcome.Type)
	assert.Equal(t, 0, report.ExitCode)
	assert.Contains(t, report.Output, "[COD] End: x=13")
}

func TestIntegrationCompileError(t *testing.T) {
	requireJDK(t)
	report := newRealDebugger(t).StartSession(context.Background(), &StartOption{
		Code:       strings.Replace(DemoCode, "int x = 10;", "int x = ;", 1),
		Breakpoint: DemoBreakpoint,
	})
	var compileErr *e.CompileError
	require.ErrorAs(t, report.Err, &compileErr)
	assert.NotZero(t, compileErr.ExitCode)
	assert.Equal(t, constants.OutcomeError, report.Outcome.Type)
	assert.Equal(t, -1, report.ExitCode)
}
