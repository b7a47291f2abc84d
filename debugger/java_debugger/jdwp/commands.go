package jdwp

import (
	"context"
	"fmt"
)

// VersionInfo VirtualMachine.Version
type VersionInfo struct {
	Description string
	Major       int32
	Minor       int32
	VMVersion   string
	VMName      string
}

// ClassInfo VirtualMachine.AllClasses中的一项
type ClassInfo struct {
	TypeTag   byte
	TypeID    uint64
	Signature string
	Status    int32
}

// Method ReferenceType.Methods中的一项
type Method struct {
	ID        uint64
	Name      string
	Signature string
	ModBits   int32
}

const (
	accNative   = 0x0100
	accAbstract = 0x0400
)

// Concrete 只有非native、非abstract的方法才会有行号表
func (m Method) Concrete() bool {
	return m.ModBits&(accNative|accAbstract) == 0
}

// LineEntry 行号表中的一项
type LineEntry struct {
	CodeIndex uint64
	Line      int32
}

// LineTable Method.LineTable
type LineTable struct {
	Start int64
	End   int64
	Lines []LineEntry
}

// LineOf 返回代码下标所在的源码行，找不到时返回-1
func (t *LineTable) LineOf(index uint64) int {
	line := -1
	var best uint64
	for _, entry := range t.Lines {
		if entry.CodeIndex <= index && (line == -1 || entry.CodeIndex >= best) {
			best = entry.CodeIndex
			line = int(entry.Line)
		}
	}
	return line
}

func decodeErr(d *Decoder, what string) error {
	if err := d.Err(); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

func (c *Conn) idSizes(ctx context.Context) (IDSizes, error) {
	d, err := c.request(ctx, CmdSetVM, CmdIDSizes, nil)
	if err != nil {
		return IDSizes{}, err
	}
	sizes := IDSizes{
		FieldID:         int(d.Int()),
		MethodID:        int(d.Int()),
		ObjectID:        int(d.Int()),
		ReferenceTypeID: int(d.Int()),
		FrameID:         int(d.Int()),
	}
	return sizes, decodeErr(d, "id sizes")
}

func (c *Conn) Version(ctx context.Context) (*VersionInfo, error) {
	d, err := c.request(ctx, CmdSetVM, CmdVersion, nil)
	if err != nil {
		return nil, err
	}
	v := &VersionInfo{
		Description: d.Str(),
		Major:       d.Int(),
		Minor:       d.Int(),
		VMVersion:   d.Str(),
		VMName:      d.Str(),
	}
	return v, decodeErr(d, "version")
}

func (c *Conn) AllClasses(ctx context.Context) ([]ClassInfo, error) {
	d, err := c.request(ctx, CmdSetVM, CmdAllClasses, nil)
	if err != nil {
		return nil, err
	}
	n := int(d.Int())
	classes := make([]ClassInfo, 0, max(n, 0))
	for i := 0; i < n && d.Err() == nil; i++ {
		classes = append(classes, ClassInfo{
			TypeTag:   d.Byte(),
			TypeID:    d.ReferenceTypeID(),
			Signature: d.Str(),
			Status:    d.Int(),
		})
	}
	return classes, decodeErr(d, "all classes")
}

func (c *Conn) Methods(ctx context.Context, typeID uint64) ([]Method, error) {
	data := NewEncoder(c.sizes).ReferenceTypeID(typeID).Bytes()
	d, err := c.request(ctx, CmdSetReferenceType, CmdMethods, data)
	if err != nil {
		return nil, err
	}
	n := int(d.Int())
	methods := make([]Method, 0, max(n, 0))
	for i := 0; i < n && d.Err() == nil; i++ {
		methods = append(methods, Method{
			ID:        d.MethodID(),
			Name:      d.Str(),
			Signature: d.Str(),
			ModBits:   d.Int(),
		})
	}
	return methods, decodeErr(d, "methods")
}

// LineTable 查询方法的行号表，结果按方法缓存
func (c *Conn) LineTable(ctx context.Context, typeID, methodID uint64) (*LineTable, error) {
	key := methodKey{typeID: typeID, methodID: methodID}
	c.mu.Lock()
	cached, ok := c.lineTables[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	data := NewEncoder(c.sizes).ReferenceTypeID(typeID).MethodID(methodID).Bytes()
	d, err := c.request(ctx, CmdSetMethod, CmdLineTable, data)
	if err != nil {
		return nil, err
	}
	table := &LineTable{Start: d.Long(), End: d.Long()}
	n := int(d.Int())
	for i := 0; i < n && d.Err() == nil; i++ {
		table.Lines = append(table.Lines, LineEntry{CodeIndex: uint64(d.Long()), Line: d.Int()})
	}
	if err = decodeErr(d, "line table"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.lineTables[key] = table
	c.mu.Unlock()
	return table, nil
}

// setBreakpointRequest EventRequest.Set，kind=BREAKPOINT，只有一个LocationOnly修饰
func (c *Conn) setBreakpointRequest(ctx context.Context, loc Location, policy SuspendPolicy) (int32, error) {
	const modLocationOnly = 7
	data := NewEncoder(c.sizes).
		Byte(byte(EventBreakpoint)).
		Byte(byte(policy)).
		Int(1).
		Byte(modLocationOnly).
		Location(loc).
		Bytes()
	d, err := c.request(ctx, CmdSetEventRequest, CmdSet, data)
	if err != nil {
		return 0, err
	}
	id := d.Int()
	return id, decodeErr(d, "event request id")
}

// ResumeVM VirtualMachine.Resume
func (c *Conn) ResumeVM(ctx context.Context) error {
	_, err := c.request(ctx, CmdSetVM, CmdResume, nil)
	return err
}

// ResumeThread ThreadReference.Resume
func (c *Conn) ResumeThread(ctx context.Context, thread uint64) error {
	data := NewEncoder(c.sizes).ObjectID(thread).Bytes()
	_, err := c.request(ctx, CmdSetThread, CmdThreadResume, data)
	return err
}
