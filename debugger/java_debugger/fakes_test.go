package java_debugger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/fansqz/jdwp-debugger/debugger"
)

var errInjected = errors.New("injected failure")

// recorder 按顺序记录各个阶段的调用
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.list() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeCompiler struct {
	rec *recorder
	err error
}

func (f *fakeCompiler) Compile(ctx context.Context, workPath string, unit *SourceUnit) (*CompiledArtifact, error) {
	f.rec.add("compile")
	if f.err != nil {
		return nil, f.err
	}
	return &CompiledArtifact{
		WorkPath:   workPath,
		SourceFile: workPath + "/" + unit.SourceFileName(),
		ClassFile:  workPath + "/" + unit.ClassName + ".class",
		EntryPoint: unit.EntryPoint,
	}, nil
}

type fakeLauncher struct {
	rec     *recorder
	err     error
	process *fakeProcess
	port    int
}

func (f *fakeLauncher) Launch(ctx context.Context, artifact *CompiledArtifact, port int) (Process, error) {
	f.rec.add("launch")
	f.port = port
	if f.err != nil {
		return nil, f.err
	}
	f.process = &fakeProcess{rec: f.rec, exitCode: 0, alive: true}
	return f.process, nil
}

type fakeProcess struct {
	rec      *recorder
	mu       sync.Mutex
	exitCode int
	alive    bool
	killed   bool
}

func (f *fakeProcess) Pid() int {
	return 42
}

func (f *fakeProcess) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeProcess) Wait() (int, error) {
	f.rec.add("wait")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	if f.killed {
		return -1, nil
	}
	return f.exitCode, nil
}

func (f *fakeProcess) Kill() error {
	f.rec.add("kill")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return nil
}

func (f *fakeProcess) Output() string {
	return "[COD] Start...\n"
}

type fakeClient struct {
	rec  *recorder
	err  error
	conn *fakeConnection
	port int
}

func (f *fakeClient) Connect(ctx context.Context, host string, port int) (Connection, error) {
	f.rec.add("connect")
	f.port = port
	if f.err != nil {
		return nil, f.err
	}
	f.conn.rec = f.rec
	return f.conn, nil
}

// fakeConnection 按脚本返回事件批次，脚本用完以后阻塞直到ctx结束
type fakeConnection struct {
	rec *recorder

	typeMissing bool
	typeErr     error
	lineMissing bool
	lineErr     error
	setErr      error
	receiveErr  error
	ackErr      error
	batches     []*EventBatch

	mu       sync.Mutex
	received int
	acked    []*EventBatch
}

func (f *fakeConnection) Description() string {
	return "FakeVM"
}

func (f *fakeConnection) ResolveType(ctx context.Context, name string) (*ResolvedType, bool, error) {
	f.rec.add("resolve-type %s", name)
	if f.typeErr != nil || f.typeMissing {
		return nil, false, f.typeErr
	}
	return &ResolvedType{Name: name, Signature: "L" + name + ";"}, true, nil
}

func (f *fakeConnection) ResolveLocation(ctx context.Context, t *ResolvedType, line int) (*CodeLocation, bool, error) {
	f.rec.add("resolve-location %d", line)
	if f.lineErr != nil || f.lineMissing {
		return nil, false, f.lineErr
	}
	return &CodeLocation{Type: t.Name, Method: "main", Line: line, Index: 18}, true, nil
}

func (f *fakeConnection) SetBreakpoint(ctx context.Context, location *CodeLocation) (*BreakpointRequest, error) {
	f.rec.add("set-breakpoint %d", location.Line)
	if f.setErr != nil {
		return nil, f.setErr
	}
	return &BreakpointRequest{ID: 1, Location: location}, nil
}

func (f *fakeConnection) Receive(ctx context.Context) (*EventBatch, error) {
	f.mu.Lock()
	if f.receiveErr != nil {
		f.mu.Unlock()
		return nil, f.receiveErr
	}
	if f.received < len(f.batches) {
		batch := f.batches[f.received]
		f.received++
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeConnection) Ack(ctx context.Context, batch *EventBatch) error {
	f.rec.add("ack")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, batch)
	return f.ackErr
}

func (f *fakeConnection) Dispose() error {
	f.rec.add("dispose")
	return nil
}

func (f *fakeConnection) ackedBatches() []*EventBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*EventBatch(nil), f.acked...)
}

func batchOf(events ...ProtocolEvent) *EventBatch {
	return &EventBatch{Events: events}
}

func hitAt(line int) ProtocolEvent {
	return ProtocolEvent{
		Kind:     EventBreakpointHit,
		Location: &CodeLocation{Type: "MyMainClass", Method: "main", Line: line},
		Name:     "BREAKPOINT",
	}
}

func other(name string) ProtocolEvent {
	return ProtocolEvent{Kind: EventOther, Name: name}
}

func disconnected() ProtocolEvent {
	return ProtocolEvent{Kind: EventDisconnected, Name: "VM_DISCONNECTED"}
}
