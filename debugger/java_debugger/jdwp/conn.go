package jdwp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/sets"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/fansqz/jdwp-debugger/utils"
	"github.com/fansqz/jdwp-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
)

const disposeTimeout = 2 * time.Second

// Conn 一个已经完成握手的JDWP连接
// 连接上有一个读协程，按照包id把应答分发给等待中的请求，事件批次进入队列，由调用方按顺序取出
type Conn struct {
	addr  string
	conn  net.Conn
	sizes IDSizes

	// status Connecting -> Attached -> Disposed
	status *utils.StatusManager
	nextID atomic.Uint32

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan *Packet
	queue   []*Packet
	readErr error
	// breakpoints 已经设置过断点的位置
	breakpoints sets.Set
	requests    map[int32]*BreakpointRequest
	lineTables  map[methodKey]*LineTable

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
	readDone  chan struct{}
}

type methodKey struct {
	typeID   uint64
	methodID uint64
}

// Dial 单次连接：tcp连接、握手、查询id长度
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var dialer net.Dialer
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(deadline)
	}
	if err = Handshake(nc); err != nil {
		_ = nc.Close()
		return nil, err
	}
	_ = nc.SetDeadline(time.Time{})

	c := newConn(addr, nc)
	gosync.Go(context.Background(), c.readLoop)

	sizes, err := c.idSizes(ctx)
	if err != nil {
		_ = c.close()
		return nil, fmt.Errorf("query id sizes: %w", err)
	}
	c.sizes = sizes
	c.status.Set(utils.Attached)
	return c, nil
}

func newConn(addr string, nc net.Conn) *Conn {
	return &Conn{
		addr:        addr,
		conn:        nc,
		sizes:       DefaultIDSizes,
		status:      utils.NewStatusManager(utils.Connecting),
		pending:     make(map[uint32]chan *Packet),
		breakpoints: utils.List2set([]Location{}),
		requests:    make(map[int32]*BreakpointRequest),
		lineTables:  make(map[methodKey]*LineTable),
		notify:      make(chan struct{}, 1),
		closed:      make(chan struct{}),
		readDone:    make(chan struct{}),
	}
}

func (c *Conn) Addr() string {
	return c.addr
}

func (c *Conn) IDSizes() IDSizes {
	return c.sizes
}

// Disposed 连接是否已经被释放
func (c *Conn) Disposed() bool {
	return c.status.Is(utils.Disposed)
}

// readLoop 循环读取agent发来的包
func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.readDone)
	r := bufio.NewReader(c.conn)
	for {
		p, err := ReadPacket(r)
		if err != nil {
			c.fail(err)
			return
		}
		if p.IsReply() {
			c.mu.Lock()
			ch, ok := c.pending[p.ID]
			delete(c.pending, p.ID)
			c.mu.Unlock()
			if ok {
				ch <- p
			} else {
				logrus.Debugf("[jdwp] drop reply %d without waiter", p.ID)
			}
			continue
		}
		if p.CommandSet == CmdSetEvent && p.Command == CmdComposite {
			c.mu.Lock()
			c.queue = append(c.queue, p)
			c.mu.Unlock()
			c.signal()
			continue
		}
		logrus.Debugf("[jdwp] ignore command %d/%d from vm", p.CommandSet, p.Command)
	}
}

func (c *Conn) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	c.mu.Unlock()
	if !c.status.Is(utils.Disposed) {
		logrus.Infof("[jdwp] connection to %s closed, err = %v", c.addr, err)
	}
	_ = c.close()
	c.signal()
}

func (c *Conn) close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) write(p *Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WritePacket(c.conn, p)
}

// request 发送一个命令并等待应答
func (c *Conn) request(ctx context.Context, set, cmd byte, data []byte) (*Decoder, error) {
	if c.status.Is(utils.Disposed) {
		return nil, &e.ProtocolDisposedError{Op: fmt.Sprintf("command %d/%d", set, cmd)}
	}
	return c.roundTrip(ctx, set, cmd, data)
}

func (c *Conn) roundTrip(ctx context.Context, set, cmd byte, data []byte) (*Decoder, error) {
	id := c.nextID.Add(1)
	ch := make(chan *Packet, 1)
	c.mu.Lock()
	if c.readErr != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("command %d/%d: %w", set, cmd, ErrVMDisconnected)
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(&Packet{ID: id, CommandSet: set, Command: cmd, Data: data}); err != nil {
		return nil, fmt.Errorf("command %d/%d: %w", set, cmd, err)
	}
	select {
	case p := <-ch:
		if p.ErrorCode != uint16(ErrNone) {
			return nil, &Error{Code: ErrorCode(p.ErrorCode), CommandSet: set, Command: cmd}
		}
		return NewDecoder(p.Data, c.sizes), nil
	case <-c.closed:
		return nil, fmt.Errorf("command %d/%d: %w", set, cmd, ErrVMDisconnected)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReceiveEventSet 阻塞等待下一个事件批次
// 连接被对端关闭并且队列已空时，返回一个合成的VM_DISCONNECTED批次
func (c *Conn) ReceiveEventSet(ctx context.Context) (*EventSet, error) {
	for {
		if c.status.Is(utils.Disposed) {
			return nil, &e.ProtocolDisposedError{Op: "receive event set"}
		}
		c.mu.Lock()
		if len(c.queue) > 0 {
			p := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return DecodeComposite(p.Data, c.sizes)
		}
		readErr := c.readErr
		c.mu.Unlock()
		if readErr != nil {
			return disconnectedEventSet(), nil
		}
		select {
		case <-c.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Resume 按照批次的挂起策略确认一个事件批次
func (c *Conn) Resume(ctx context.Context, set *EventSet) error {
	switch set.SuspendPolicy {
	case SuspendAll:
		return c.ResumeVM(ctx)
	case SuspendEventThread:
		return c.ResumeThread(ctx, set.Thread())
	default:
		return nil
	}
}

// Dispose 释放连接，重复调用无效果
// 释放连接不会结束被调试进程
func (c *Conn) Dispose() error {
	if !c.status.Transition(utils.Disposed, utils.Connecting, utils.Attached) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()
	_, err := c.roundTrip(ctx, CmdSetVM, CmdDispose, nil)
	if errors.Is(err, ErrVMDisconnected) {
		err = nil
	}
	if closeErr := c.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	<-c.readDone
	c.mu.Lock()
	c.queue = nil
	c.requests = make(map[int32]*BreakpointRequest)
	c.breakpoints.Clear()
	c.mu.Unlock()
	return err
}
