// Package jdwp 实现了Java Debug Wire Protocol的客户端部分，
// 只覆盖单断点调试会话需要的命令：握手、类型枚举、行号表、断点请求、事件批次的接收与确认。
package jdwp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HandshakeString 双方在建立连接后各发送一次
	HandshakeString = "JDWP-Handshake"
	headerSize      = 11
	flagReply       = 0x80
	maxPacketSize   = 16 * 1024 * 1024
)

// command set
const (
	CmdSetVM            byte = 1
	CmdSetReferenceType byte = 2
	CmdSetMethod        byte = 6
	CmdSetThread        byte = 11
	CmdSetEventRequest  byte = 15
	CmdSetEvent         byte = 64
)

// command
const (
	CmdVersion      byte = 1 // VirtualMachine.Version
	CmdAllClasses   byte = 3 // VirtualMachine.AllClasses
	CmdDispose      byte = 6 // VirtualMachine.Dispose
	CmdIDSizes      byte = 7 // VirtualMachine.IDSizes
	CmdResume       byte = 9 // VirtualMachine.Resume
	CmdMethods      byte = 5 // ReferenceType.Methods
	CmdLineTable    byte = 1 // Method.LineTable
	CmdThreadResume byte = 3 // ThreadReference.Resume
	CmdSet          byte = 1 // EventRequest.Set
	CmdComposite    byte = 100
)

var ErrHandshake = errors.New("jdwp handshake mismatch")

// Packet 命令包和应答包共用的结构，IsReply区分两者
type Packet struct {
	ID    uint32
	Flags byte
	// 命令包
	CommandSet byte
	Command    byte
	// 应答包
	ErrorCode uint16
	Data      []byte
}

func (p *Packet) IsReply() bool {
	return p.Flags&flagReply != 0
}

// ReadPacket 读取一个完整的包，流正常结束时返回io.EOF
func ReadPacket(r io.Reader) (*Packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read packet header: %w", err)
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length < headerSize || length > maxPacketSize {
		return nil, fmt.Errorf("invalid packet length %d", length)
	}
	p := &Packet{
		ID:    binary.BigEndian.Uint32(header[4:8]),
		Flags: header[8],
	}
	if p.IsReply() {
		p.ErrorCode = binary.BigEndian.Uint16(header[9:11])
	} else {
		p.CommandSet = header[9]
		p.Command = header[10]
	}
	p.Data = make([]byte, length-headerSize)
	if _, err := io.ReadFull(r, p.Data); err != nil {
		return nil, fmt.Errorf("read packet %d body: %w", p.ID, err)
	}
	return p, nil
}

// WritePacket 包头和数据一次写出
func WritePacket(w io.Writer, p *Packet) error {
	buf := make([]byte, headerSize+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.BigEndian.PutUint32(buf[4:8], p.ID)
	buf[8] = p.Flags
	if p.IsReply() {
		binary.BigEndian.PutUint16(buf[9:11], p.ErrorCode)
	} else {
		buf[9] = p.CommandSet
		buf[10] = p.Command
	}
	copy(buf[headerSize:], p.Data)
	_, err := w.Write(buf)
	return err
}

// Handshake debugger一侧的握手：先写后读
func Handshake(rw io.ReadWriter) error {
	if _, err := io.WriteString(rw, HandshakeString); err != nil {
		return err
	}
	return expectHandshake(rw)
}

// AcceptHandshake agent一侧的握手：先读后写
func AcceptHandshake(rw io.ReadWriter) error {
	if err := expectHandshake(rw); err != nil {
		return err
	}
	_, err := io.WriteString(rw, HandshakeString)
	return err
}

func expectHandshake(r io.Reader) error {
	reply := make([]byte, len(HandshakeString))
	if _, err := io.ReadFull(r, reply); err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	if string(reply) != HandshakeString {
		return fmt.Errorf("%w: got %q", ErrHandshake, reply)
	}
	return nil
}
