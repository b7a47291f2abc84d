package java_debugger

import (
	"context"
	"fmt"
	"sync"

	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/fansqz/jdwp-debugger/debugger/java_debugger/jdwp"
	"github.com/sirupsen/logrus"
)

// JDWPClient 基于jdwp的调试协议客户端
type JDWPClient struct {
	Retry jdwp.RetryPolicy
}

func NewJDWPClient(retry jdwp.RetryPolicy) *JDWPClient {
	return &JDWPClient{Retry: retry}
}

// Connect 连接被调试程序，agent还没有开始监听时按退避策略重试
func (j *JDWPClient) Connect(ctx context.Context, host string, port int) (Connection, error) {
	conn, err := jdwp.Attach(ctx, host, port, j.Retry)
	if err != nil {
		return nil, err
	}
	c := &jdwpConnection{conn: conn}
	version, err := conn.Version(ctx)
	if err != nil {
		// 版本信息只用于日志
		logrus.Warnf("[JDWPClient] get vm version fail, err = %v", err)
		c.description = conn.Addr()
	} else {
		c.description = version.Description
	}
	return c, nil
}

// jdwpConnection 把jdwp连接适配成Connection
type jdwpConnection struct {
	conn        *jdwp.Conn
	description string
	disposeOnce sync.Once
	disposeErr  error
}

func (c *jdwpConnection) Description() string {
	return c.description
}

func (c *jdwpConnection) ResolveType(ctx context.Context, name string) (*ResolvedType, bool, error) {
	rt, ok, err := c.conn.FindType(ctx, name)
	if err != nil || !ok {
		return nil, false, err
	}
	return &ResolvedType{
		Name:      rt.Name,
		Signature: rt.Signature,
		Handle:    rt,
	}, true, nil
}

func (c *jdwpConnection) ResolveLocation(ctx context.Context, t *ResolvedType, line int) (*CodeLocation, bool, error) {
	rt, ok := t.Handle.(*jdwp.ReferenceType)
	if !ok {
		return nil, false, fmt.Errorf("type %s was not resolved by a jdwp connection", t.Name)
	}
	locations, err := c.conn.LocationsOfLine(ctx, rt, line)
	if err != nil {
		return nil, false, err
	}
	if len(locations) == 0 {
		return nil, false, nil
	}
	return toCodeLocation(locations[0]), true, nil
}

func (c *jdwpConnection) SetBreakpoint(ctx context.Context, location *CodeLocation) (*BreakpointRequest, error) {
	loc, ok := location.Handle.(jdwp.CodeLocation)
	if !ok {
		return nil, fmt.Errorf("location %s was not resolved by a jdwp connection", location)
	}
	request, err := c.conn.CreateBreakpoint(ctx, loc)
	if err != nil {
		return nil, err
	}
	return &BreakpointRequest{
		ID:       request.ID,
		Location: toCodeLocation(request.Location),
	}, nil
}

func (c *jdwpConnection) Receive(ctx context.Context) (*EventBatch, error) {
	set, err := c.conn.ReceiveEventSet(ctx)
	if err != nil {
		return nil, err
	}
	batch := &EventBatch{
		Events: make([]ProtocolEvent, 0, len(set.Events)),
		Handle: set,
	}
	for _, ev := range set.Events {
		batch.Events = append(batch.Events, c.toProtocolEvent(ev))
	}
	return batch, nil
}

func (c *jdwpConnection) Ack(ctx context.Context, batch *EventBatch) error {
	set, ok := batch.Handle.(*jdwp.EventSet)
	if !ok {
		return fmt.Errorf("event batch was not received from a jdwp connection")
	}
	return c.conn.Resume(ctx, set)
}

func (c *jdwpConnection) Dispose() error {
	c.disposeOnce.Do(func() {
		c.disposeErr = c.conn.Dispose()
	})
	return c.disposeErr
}

// toProtocolEvent 把jdwp事件归类，除了断点和断开以外的事件都归为EventOther
func (c *jdwpConnection) toProtocolEvent(ev jdwp.Event) ProtocolEvent {
	switch ev.Kind {
	case jdwp.EventBreakpoint:
		return ProtocolEvent{
			Kind:     EventBreakpointHit,
			Location: c.breakpointLocation(ev),
			Name:     ev.Kind.String(),
		}
	case jdwp.EventVMDisconnected:
		return ProtocolEvent{Kind: EventDisconnected, Name: ev.Kind.String()}
	default:
		return ProtocolEvent{Kind: EventOther, Name: ev.Kind.String()}
	}
}

func (c *jdwpConnection) breakpointLocation(ev jdwp.Event) *CodeLocation {
	if request, ok := c.conn.BreakpointByID(ev.RequestID); ok {
		return toCodeLocation(request.Location)
	}
	if ev.Location == nil {
		return nil
	}
	return &CodeLocation{
		Line:  c.conn.LineOfLocation(*ev.Location),
		Index: ev.Location.Index,
	}
}

func toCodeLocation(loc jdwp.CodeLocation) *CodeLocation {
	return &CodeLocation{
		Type:   loc.Type.Name,
		Method: loc.Method.Name,
		Line:   loc.Line,
		Index:  loc.Index,
		Handle: loc,
	}
}
