package jdwp

import (
	"encoding/binary"
	"errors"
)

var errShortPacket = errors.New("jdwp packet data too short")

// IDSizes VirtualMachine.IDSizes的应答，决定了各类id在线上的字节数
type IDSizes struct {
	FieldID         int
	MethodID        int
	ObjectID        int
	ReferenceTypeID int
	FrameID         int
}

// DefaultIDSizes HotSpot在64位平台上的取值
var DefaultIDSizes = IDSizes{FieldID: 8, MethodID: 8, ObjectID: 8, ReferenceTypeID: 8, FrameID: 8}

// Location 线上的代码位置
type Location struct {
	TypeTag  byte
	ClassID  uint64
	MethodID uint64
	Index    uint64
}

// Encoder 按照JDWP的大端格式拼装命令数据
type Encoder struct {
	buf   []byte
	sizes IDSizes
}

func NewEncoder(sizes IDSizes) *Encoder {
	return &Encoder{sizes: sizes}
}

func (e *Encoder) Byte(b byte) *Encoder {
	e.buf = append(e.buf, b)
	return e
}

func (e *Encoder) Bool(b bool) *Encoder {
	if b {
		return e.Byte(1)
	}
	return e.Byte(0)
}

func (e *Encoder) Int(v int32) *Encoder {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	return e
}

func (e *Encoder) Long(v int64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	return e
}

func (e *Encoder) Str(s string) *Encoder {
	e.Int(int32(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

// ID 按照size个字节写出id
func (e *Encoder) ID(v uint64, size int) *Encoder {
	for i := size - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(v>>(8*uint(i))))
	}
	return e
}

func (e *Encoder) ObjectID(v uint64) *Encoder {
	return e.ID(v, e.sizes.ObjectID)
}

func (e *Encoder) ReferenceTypeID(v uint64) *Encoder {
	return e.ID(v, e.sizes.ReferenceTypeID)
}

func (e *Encoder) MethodID(v uint64) *Encoder {
	return e.ID(v, e.sizes.MethodID)
}

func (e *Encoder) Location(l Location) *Encoder {
	e.Byte(l.TypeTag)
	e.ReferenceTypeID(l.ClassID)
	e.MethodID(l.MethodID)
	return e.Long(int64(l.Index))
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder 解析应答和事件数据，第一次越界之后所有读取都返回零值，错误通过Err获取
type Decoder struct {
	data  []byte
	off   int
	sizes IDSizes
	err   error
}

func NewDecoder(data []byte, sizes IDSizes) *Decoder {
	return &Decoder{data: data, sizes: sizes}
}

func (d *Decoder) need(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.err = errShortPacket
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) Byte() byte {
	b := d.need(1)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool {
	return d.Byte() != 0
}

func (d *Decoder) Short() int16 {
	b := d.need(2)
	if len(b) < 2 {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

func (d *Decoder) Int() int32 {
	b := d.need(4)
	if len(b) < 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (d *Decoder) Long() int64 {
	b := d.need(8)
	if len(b) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (d *Decoder) Str() string {
	n := d.Int()
	if n < 0 && d.err == nil {
		d.err = errShortPacket
	}
	return string(d.need(int(n)))
}

func (d *Decoder) ID(size int) uint64 {
	var v uint64
	for _, x := range d.need(size) {
		v = v<<8 | uint64(x)
	}
	return v
}

func (d *Decoder) ObjectID() uint64 {
	return d.ID(d.sizes.ObjectID)
}

func (d *Decoder) ReferenceTypeID() uint64 {
	return d.ID(d.sizes.ReferenceTypeID)
}

func (d *Decoder) MethodID() uint64 {
	return d.ID(d.sizes.MethodID)
}

func (d *Decoder) FieldID() uint64 {
	return d.ID(d.sizes.FieldID)
}

func (d *Decoder) Location() Location {
	return Location{
		TypeTag:  d.Byte(),
		ClassID:  d.ReferenceTypeID(),
		MethodID: d.MethodID(),
		Index:    uint64(d.Long()),
	}
}

// TaggedObjectID tag + objectID
func (d *Decoder) TaggedObjectID() uint64 {
	d.Byte()
	return d.ObjectID()
}

// SkipValue 跳过一个带tag的值
func (d *Decoder) SkipValue() {
	switch tag := d.Byte(); tag {
	case 'V':
	case 'B', 'Z':
		d.need(1)
	case 'C', 'S':
		d.need(2)
	case 'F', 'I':
		d.need(4)
	case 'D', 'J':
		d.need(8)
	case '[', 'L', 's', 't', 'g', 'l', 'c':
		d.ObjectID()
	default:
		if d.err == nil {
			d.err = errors.New("unknown value tag " + string(rune(tag)))
		}
	}
}

func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) Err() error {
	return d.err
}
