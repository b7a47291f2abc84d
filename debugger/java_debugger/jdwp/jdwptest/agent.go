// Package jdwptest 提供一个进程内的假调试agent，按照配置的类型和行号表应答JDWP命令
package jdwptest

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fansqz/jdwp-debugger/debugger/java_debugger/jdwp"
	"github.com/sirupsen/logrus"
)

// BreakpointThread 断点事件中使用的线程id
const BreakpointThread uint64 = 1

type Method struct {
	ID        uint64
	Name      string
	Signature string
	ModBits   int32
	Lines     []jdwp.LineEntry
	// Absent 模拟不带-g编译：LineTable返回ABSENT_INFORMATION
	Absent bool
}

type Class struct {
	ID        uint64
	Signature string
	Methods   []Method
}

// Agent 假的调试agent，只接受一个调试器连接
type Agent struct {
	// HitOnSet 设置断点以后马上发送一个断点事件
	HitOnSet bool
	// ExitAfterResume 第一次resume以后发送VM_DEATH并关闭连接
	ExitAfterResume bool
	// SuspendPolicy 断点事件批次使用的挂起策略，默认SUSPEND_ALL
	SuspendPolicy jdwp.SuspendPolicy

	classes []Class
	sizes   jdwp.IDSizes
	ln      net.Listener
	port    int

	mu            sync.Mutex
	conn          net.Conn
	nextRequestID int32
	breakpoints   []jdwp.Location
	resumes       int
	threadResumes int
	disposes      int
	connected     chan struct{}
	closed        bool
	closeOnce     sync.Once
}

// NewAgent 在127.0.0.1的随机端口上监听
func NewAgent(t testing.TB, classes ...Class) *Agent {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a := newAgent(classes)
	a.ln = ln
	a.port = ln.Addr().(*net.TCPAddr).Port
	go a.serve()
	t.Cleanup(a.Close)
	return a
}

// NewDelayedAgent 先占用一个端口，delay以后才开始监听，模拟agent异步就绪
func NewDelayedAgent(t testing.TB, delay time.Duration, classes ...Class) *Agent {
	a := newAgent(classes)
	a.port = FreePort(t)
	go func() {
		time.Sleep(delay)
		ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(a.port))
		if err != nil {
			logrus.Errorf("[jdwptest] delayed listen fail, err = %v", err)
			return
		}
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			_ = ln.Close()
			return
		}
		a.ln = ln
		a.mu.Unlock()
		a.serve()
	}()
	t.Cleanup(a.Close)
	return a
}

// FreePort 返回一个当前没有被监听的端口
func FreePort(t testing.TB) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func newAgent(classes []Class) *Agent {
	return &Agent{
		classes:       classes,
		sizes:         jdwp.DefaultIDSizes,
		SuspendPolicy: jdwp.SuspendAll,
		nextRequestID: 1,
		connected:     make(chan struct{}),
	}
}

func (a *Agent) Port() int {
	return a.port
}

// Connected 调试器完成握手以后关闭
func (a *Agent) Connected() <-chan struct{} {
	return a.connected
}

func (a *Agent) Resumes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resumes + a.threadResumes
}

func (a *Agent) ThreadResumes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threadResumes
}

func (a *Agent) Disposes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposes
}

func (a *Agent) Breakpoints() []jdwp.Location {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]jdwp.Location(nil), a.breakpoints...)
}

func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.closed = true
		if a.ln != nil {
			_ = a.ln.Close()
		}
		if a.conn != nil {
			_ = a.conn.Close()
		}
	})
}

func (a *Agent) serve() {
	a.mu.Lock()
	ln := a.ln
	a.mu.Unlock()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	if err = jdwp.AcceptHandshake(conn); err != nil {
		_ = conn.Close()
		return
	}
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	close(a.connected)

	r := bufio.NewReader(conn)
	for {
		p, err := jdwp.ReadPacket(r)
		if err != nil {
			return
		}
		if p.IsReply() {
			continue
		}
		if !a.handle(p) {
			return
		}
	}
}

func (a *Agent) reply(p *jdwp.Packet, code jdwp.ErrorCode, data []byte) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	_ = jdwp.WritePacket(conn, &jdwp.Packet{ID: p.ID, Flags: 0x80, ErrorCode: uint16(code), Data: data})
}

// SendEvents 发送一个事件批次
func (a *Agent) SendEvents(set *jdwp.EventSet) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	return jdwp.WritePacket(conn, &jdwp.Packet{
		ID:         0x40000000,
		CommandSet: jdwp.CmdSetEvent,
		Command:    jdwp.CmdComposite,
		Data:       jdwp.EncodeComposite(set, a.sizes),
	})
}

// Exit 模拟被调试进程退出：发送VM_DEATH并关闭连接
func (a *Agent) Exit() {
	_ = a.SendEvents(&jdwp.EventSet{
		SuspendPolicy: jdwp.SuspendNone,
		Events:        []jdwp.Event{{Kind: jdwp.EventVMDeath}},
	})
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func (a *Agent) class(id uint64) (Class, bool) {
	for _, class := range a.classes {
		if class.ID == id {
			return class, true
		}
	}
	return Class{}, false
}

// handle 返回false时停止服务
func (a *Agent) handle(p *jdwp.Packet) bool {
	d := jdwp.NewDecoder(p.Data, a.sizes)
	enc := jdwp.NewEncoder(a.sizes)
	switch {
	case p.CommandSet == jdwp.CmdSetVM && p.Command == jdwp.CmdIDSizes:
		enc.Int(8).Int(8).Int(8).Int(8).Int(8)
		a.reply(p, jdwp.ErrNone, enc.Bytes())
	case p.CommandSet == jdwp.CmdSetVM && p.Command == jdwp.CmdVersion:
		enc.Str("Fake VM for tests").Int(17).Int(0).Str("17.0.0").Str("FakeVM")
		a.reply(p, jdwp.ErrNone, enc.Bytes())
	case p.CommandSet == jdwp.CmdSetVM && p.Command == jdwp.CmdAllClasses:
		enc.Int(int32(len(a.classes)))
		for _, class := range a.classes {
			enc.Byte(1).ReferenceTypeID(class.ID).Str(class.Signature).Int(7)
		}
		a.reply(p, jdwp.ErrNone, enc.Bytes())
	case p.CommandSet == jdwp.CmdSetReferenceType && p.Command == jdwp.CmdMethods:
		class, ok := a.class(d.ReferenceTypeID())
		if !ok {
			a.reply(p, jdwp.ErrInvalidClass, nil)
			break
		}
		enc.Int(int32(len(class.Methods)))
		for _, m := range class.Methods {
			enc.MethodID(m.ID).Str(m.Name).Str(m.Signature).Int(m.ModBits)
		}
		a.reply(p, jdwp.ErrNone, enc.Bytes())
	case p.CommandSet == jdwp.CmdSetMethod && p.Command == jdwp.CmdLineTable:
		a.handleLineTable(p, d, enc)
	case p.CommandSet == jdwp.CmdSetEventRequest && p.Command == jdwp.CmdSet:
		a.handleSet(p, d, enc)
	case p.CommandSet == jdwp.CmdSetVM && p.Command == jdwp.CmdResume:
		a.mu.Lock()
		a.resumes++
		a.mu.Unlock()
		a.reply(p, jdwp.ErrNone, nil)
		if a.ExitAfterResume {
			a.Exit()
			return false
		}
	case p.CommandSet == jdwp.CmdSetThread && p.Command == jdwp.CmdThreadResume:
		a.mu.Lock()
		a.threadResumes++
		a.mu.Unlock()
		a.reply(p, jdwp.ErrNone, nil)
		if a.ExitAfterResume {
			a.Exit()
			return false
		}
	case p.CommandSet == jdwp.CmdSetVM && p.Command == jdwp.CmdDispose:
		a.mu.Lock()
		a.disposes++
		a.mu.Unlock()
		a.reply(p, jdwp.ErrNone, nil)
	default:
		a.reply(p, jdwp.ErrNotImplemented, nil)
	}
	return true
}

func (a *Agent) handleLineTable(p *jdwp.Packet, d *jdwp.Decoder, enc *jdwp.Encoder) {
	class, ok := a.class(d.ReferenceTypeID())
	if !ok {
		a.reply(p, jdwp.ErrInvalidClass, nil)
		return
	}
	methodID := d.MethodID()
	for _, m := range class.Methods {
		if m.ID != methodID {
			continue
		}
		if m.Absent {
			a.reply(p, jdwp.ErrAbsentInformation, nil)
			return
		}
		var end uint64
		for _, entry := range m.Lines {
			end = max(end, entry.CodeIndex)
		}
		enc.Long(0).Long(int64(end)).Int(int32(len(m.Lines)))
		for _, entry := range m.Lines {
			enc.Long(int64(entry.CodeIndex)).Int(entry.Line)
		}
		a.reply(p, jdwp.ErrNone, enc.Bytes())
		return
	}
	a.reply(p, jdwp.ErrInvalidMethodID, nil)
}

func (a *Agent) handleSet(p *jdwp.Packet, d *jdwp.Decoder, enc *jdwp.Encoder) {
	kind := jdwp.EventKind(d.Byte())
	d.Byte()
	modifiers := d.Int()
	if kind != jdwp.EventBreakpoint || modifiers != 1 || d.Byte() != 7 {
		a.reply(p, jdwp.ErrNotImplemented, nil)
		return
	}
	loc := d.Location()
	if d.Err() != nil {
		a.reply(p, jdwp.ErrInternal, nil)
		return
	}
	a.mu.Lock()
	id := a.nextRequestID
	a.nextRequestID++
	a.breakpoints = append(a.breakpoints, loc)
	a.mu.Unlock()
	a.reply(p, jdwp.ErrNone, enc.Int(id).Bytes())

	if a.HitOnSet {
		_ = a.SendEvents(&jdwp.EventSet{
			SuspendPolicy: a.SuspendPolicy,
			Events: []jdwp.Event{
				{Kind: jdwp.EventBreakpoint, RequestID: id, Thread: BreakpointThread, Location: &loc},
			},
		})
	}
}
