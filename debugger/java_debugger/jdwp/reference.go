package jdwp

import (
	"context"
	"fmt"
	"sort"

	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/sirupsen/logrus"
)

// ReferenceType 在某个连接上解析出来的类型，只能在同一个连接上使用
type ReferenceType struct {
	ClassInfo
	Name string
	conn *Conn
}

// CodeLocation 一个源码行对应的可执行位置
type CodeLocation struct {
	Type   *ReferenceType
	Method Method
	Location
	Line int
}

// BreakpointRequest 已经设置并启用的断点请求
type BreakpointRequest struct {
	ID       int32
	Location CodeLocation
}

// FindType 线性扫描所有已加载的类型，返回第一个名称完全相同的类型
// 类型还没有被加载是正常情况，返回(nil, false, nil)
func (c *Conn) FindType(ctx context.Context, name string) (*ReferenceType, bool, error) {
	classes, err := c.AllClasses(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, class := range classes {
		if TypeNameFromSignature(class.Signature) == name {
			return &ReferenceType{ClassInfo: class, Name: name, conn: c}, true, nil
		}
	}
	return nil, false, nil
}

// LocationsOfLine 返回类型中所有位于line的代码位置，按方法顺序和代码下标排列
// 所有具体方法都没有行号信息时返回AbsentLineInfoError
func (c *Conn) LocationsOfLine(ctx context.Context, rt *ReferenceType, line int) ([]CodeLocation, error) {
	if err := c.checkOwner(rt, "locations of line"); err != nil {
		return nil, err
	}
	methods, err := c.Methods(ctx, rt.TypeID)
	if err != nil {
		return nil, err
	}
	var locations []CodeLocation
	concrete, absent := 0, 0
	for _, method := range methods {
		if !method.Concrete() {
			continue
		}
		concrete++
		table, err := c.LineTable(ctx, rt.TypeID, method.ID)
		if err != nil {
			if IsErrorCode(err, ErrAbsentInformation) {
				absent++
				continue
			}
			if IsErrorCode(err, ErrNativeMethod) {
				continue
			}
			return nil, fmt.Errorf("line table of %s.%s: %w", rt.Name, method.Name, err)
		}
		seen := make(map[uint64]bool)
		for _, entry := range table.Lines {
			if int(entry.Line) != line || seen[entry.CodeIndex] {
				continue
			}
			seen[entry.CodeIndex] = true
			locations = append(locations, CodeLocation{
				Type:   rt,
				Method: method,
				Location: Location{
					TypeTag:  rt.TypeTag,
					ClassID:  rt.TypeID,
					MethodID: method.ID,
					Index:    entry.CodeIndex,
				},
				Line: line,
			})
		}
		// 同一个方法内按代码索引排序
		methodLocations := locations[len(locations)-len(seen):]
		sort.Slice(methodLocations, func(i, j int) bool {
			return methodLocations[i].Index < methodLocations[j].Index
		})
	}
	if concrete > 0 && absent == concrete {
		return nil, &e.AbsentLineInfoError{Type: rt.Name}
	}
	return locations, nil
}

// CreateBreakpoint 在location上设置并启用一个断点，同一个位置只能设置一次
func (c *Conn) CreateBreakpoint(ctx context.Context, location CodeLocation) (*BreakpointRequest, error) {
	if err := c.checkOwner(location.Type, "create breakpoint"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	duplicate := c.breakpoints.Contains(location.Location)
	c.mu.Unlock()
	if duplicate {
		return nil, fmt.Errorf("%w: %s line %d", e.ErrDuplicateBreakpoint, location.Type.Name, location.Line)
	}

	id, err := c.setBreakpointRequest(ctx, location.Location, SuspendAll)
	if err != nil {
		return nil, err
	}
	request := &BreakpointRequest{ID: id, Location: location}
	c.mu.Lock()
	c.breakpoints.Add(location.Location)
	c.requests[id] = request
	c.mu.Unlock()
	logrus.Debugf("[jdwp] breakpoint request %d at %s:%d", id, location.Type.Name, location.Line)
	return request, nil
}

// BreakpointByID 根据事件中的requestID找到断点请求
func (c *Conn) BreakpointByID(id int32) (*BreakpointRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	request, ok := c.requests[id]
	return request, ok
}

// LineOfLocation 利用已缓存的行号表把线上的位置转换成源码行，没有缓存时返回-1
func (c *Conn) LineOfLocation(loc Location) int {
	c.mu.Lock()
	table, ok := c.lineTables[methodKey{typeID: loc.ClassID, methodID: loc.MethodID}]
	c.mu.Unlock()
	if !ok {
		return -1
	}
	return table.LineOf(loc.Index)
}

func (c *Conn) checkOwner(rt *ReferenceType, op string) error {
	if c.Disposed() {
		return &e.ProtocolDisposedError{Op: op}
	}
	if rt == nil || rt.conn != c {
		return e.ErrForeignType
	}
	return nil
}
