package jdwp

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EventKind JDWP的事件类型
type EventKind byte

const (
	EventSingleStep                EventKind = 1
	EventBreakpoint                EventKind = 2
	EventFramePop                  EventKind = 3
	EventException                 EventKind = 4
	EventUserDefined               EventKind = 5
	EventThreadStart               EventKind = 6
	EventThreadDeath               EventKind = 7
	EventClassPrepare              EventKind = 8
	EventClassUnload               EventKind = 9
	EventClassLoad                 EventKind = 10
	EventFieldAccess               EventKind = 20
	EventFieldModification         EventKind = 21
	EventExceptionCatch            EventKind = 30
	EventMethodEntry               EventKind = 40
	EventMethodExit                EventKind = 41
	EventMethodExitWithReturnValue EventKind = 42
	EventMonitorContendedEnter     EventKind = 43
	EventMonitorContendedEntered   EventKind = 44
	EventMonitorWait               EventKind = 45
	EventMonitorWaited             EventKind = 46
	EventVMStart                   EventKind = 90
	EventVMDeath                   EventKind = 99
	// EventVMDisconnected 不会在线上出现，连接断开时由客户端合成
	EventVMDisconnected EventKind = 100
)

func (k EventKind) String() string {
	switch k {
	case EventSingleStep:
		return "SINGLE_STEP"
	case EventBreakpoint:
		return "BREAKPOINT"
	case EventException:
		return "EXCEPTION"
	case EventThreadStart:
		return "THREAD_START"
	case EventThreadDeath:
		return "THREAD_DEATH"
	case EventClassPrepare:
		return "CLASS_PREPARE"
	case EventClassUnload:
		return "CLASS_UNLOAD"
	case EventMethodEntry:
		return "METHOD_ENTRY"
	case EventMethodExit:
		return "METHOD_EXIT"
	case EventVMStart:
		return "VM_START"
	case EventVMDeath:
		return "VM_DEATH"
	case EventVMDisconnected:
		return "VM_DISCONNECTED"
	default:
		return fmt.Sprintf("EVENT_%d", byte(k))
	}
}

// SuspendPolicy 事件发生时agent挂起了哪些线程
type SuspendPolicy byte

const (
	SuspendNone        SuspendPolicy = 0
	SuspendEventThread SuspendPolicy = 1
	SuspendAll         SuspendPolicy = 2
)

// Event 一个已解析的事件，不关心的字段保持零值
type Event struct {
	Kind      EventKind
	RequestID int32
	Thread    uint64
	Location  *Location
	// Signature CLASS_PREPARE / CLASS_UNLOAD 的类型签名
	Signature string
}

// EventSet 一个Composite命令携带的事件批次，需要整体确认
type EventSet struct {
	SuspendPolicy SuspendPolicy
	Events        []Event
	// Truncated 遇到了无法解析长度的事件，后续事件被丢弃
	Truncated bool
	// Synthetic 连接断开时客户端合成的批次
	Synthetic bool
}

// Thread 批次中第一个带线程的事件的线程id
func (s *EventSet) Thread() uint64 {
	for _, ev := range s.Events {
		if ev.Thread != 0 {
			return ev.Thread
		}
	}
	return 0
}

func disconnectedEventSet() *EventSet {
	return &EventSet{
		SuspendPolicy: SuspendNone,
		Events:        []Event{{Kind: EventVMDisconnected}},
		Synthetic:     true,
	}
}

// DecodeComposite 解析Event.Composite命令的数据
func DecodeComposite(data []byte, sizes IDSizes) (*EventSet, error) {
	d := NewDecoder(data, sizes)
	set := &EventSet{SuspendPolicy: SuspendPolicy(d.Byte())}
	count := int(d.Int())
	for i := 0; i < count && d.Err() == nil; i++ {
		ev := Event{Kind: EventKind(d.Byte()), RequestID: d.Int()}
		if !decodeEventBody(d, &ev) {
			logrus.Warnf("[jdwp] cannot decode event kind %s, drop %d remaining events", ev.Kind, count-i-1)
			set.Events = append(set.Events, ev)
			set.Truncated = true
			break
		}
		set.Events = append(set.Events, ev)
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode composite event: %w", err)
	}
	return set, nil
}

// decodeEventBody 按照事件类型读取事件数据，未知类型返回false
func decodeEventBody(d *Decoder, ev *Event) bool {
	location := func() {
		loc := d.Location()
		ev.Location = &loc
	}
	switch ev.Kind {
	case EventVMDeath:
	case EventVMStart, EventThreadStart, EventThreadDeath:
		ev.Thread = d.ObjectID()
	case EventSingleStep, EventBreakpoint, EventMethodEntry, EventMethodExit:
		ev.Thread = d.ObjectID()
		location()
	case EventMethodExitWithReturnValue:
		ev.Thread = d.ObjectID()
		location()
		d.SkipValue()
	case EventMonitorContendedEnter, EventMonitorContendedEntered:
		ev.Thread = d.ObjectID()
		d.TaggedObjectID()
		location()
	case EventMonitorWait:
		ev.Thread = d.ObjectID()
		d.TaggedObjectID()
		location()
		d.Long()
	case EventMonitorWaited:
		ev.Thread = d.ObjectID()
		d.TaggedObjectID()
		location()
		d.Bool()
	case EventException:
		ev.Thread = d.ObjectID()
		location()
		d.TaggedObjectID()
		d.Location()
	case EventClassPrepare:
		ev.Thread = d.ObjectID()
		d.Byte()
		d.ReferenceTypeID()
		ev.Signature = d.Str()
		d.Int()
	case EventClassUnload:
		ev.Signature = d.Str()
	case EventFieldAccess, EventFieldModification:
		ev.Thread = d.ObjectID()
		location()
		d.Byte()
		d.ReferenceTypeID()
		d.FieldID()
		d.TaggedObjectID()
		if ev.Kind == EventFieldModification {
			d.SkipValue()
		}
	default:
		return false
	}
	return true
}

// EncodeComposite 供测试agent使用
func EncodeComposite(set *EventSet, sizes IDSizes) []byte {
	e := NewEncoder(sizes)
	e.Byte(byte(set.SuspendPolicy)).Int(int32(len(set.Events)))
	for _, ev := range set.Events {
		e.Byte(byte(ev.Kind)).Int(ev.RequestID)
		switch ev.Kind {
		case EventVMDeath:
		case EventVMStart, EventThreadStart, EventThreadDeath:
			e.ObjectID(ev.Thread)
		case EventSingleStep, EventBreakpoint, EventMethodEntry, EventMethodExit:
			e.ObjectID(ev.Thread)
			var loc Location
			if ev.Location != nil {
				loc = *ev.Location
			}
			e.Location(loc)
		case EventClassPrepare:
			e.ObjectID(ev.Thread).Byte(1).ReferenceTypeID(0).Str(ev.Signature).Int(7)
		case EventClassUnload:
			e.Str(ev.Signature)
		}
	}
	return e.Bytes()
}
