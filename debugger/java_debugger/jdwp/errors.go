package jdwp

import (
	"errors"
	"fmt"
)

// ErrorCode 应答包中的错误码
type ErrorCode uint16

const (
	ErrNone               ErrorCode = 0
	ErrInvalidThread      ErrorCode = 10
	ErrThreadNotSuspended ErrorCode = 13
	ErrInvalidObject      ErrorCode = 20
	ErrInvalidClass       ErrorCode = 21
	ErrClassNotPrepared   ErrorCode = 22
	ErrInvalidMethodID    ErrorCode = 23
	ErrInvalidLocation    ErrorCode = 24
	ErrNotImplemented     ErrorCode = 99
	ErrAbsentInformation  ErrorCode = 101
	ErrInvalidEventType   ErrorCode = 102
	ErrVMDead             ErrorCode = 112
	ErrInternal           ErrorCode = 113
	ErrNativeMethod       ErrorCode = 511
)

var errorNames = map[ErrorCode]string{
	ErrInvalidThread:      "INVALID_THREAD",
	ErrThreadNotSuspended: "THREAD_NOT_SUSPENDED",
	ErrInvalidObject:      "INVALID_OBJECT",
	ErrInvalidClass:       "INVALID_CLASS",
	ErrClassNotPrepared:   "CLASS_NOT_PREPARED",
	ErrInvalidMethodID:    "INVALID_METHODID",
	ErrInvalidLocation:    "INVALID_LOCATION",
	ErrNotImplemented:     "NOT_IMPLEMENTED",
	ErrAbsentInformation:  "ABSENT_INFORMATION",
	ErrInvalidEventType:   "INVALID_EVENT_TYPE",
	ErrVMDead:             "VM_DEAD",
	ErrInternal:           "INTERNAL",
	ErrNativeMethod:       "NATIVE_METHOD",
}

func (c ErrorCode) String() string {
	if name, ok := errorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_%d", uint16(c))
}

// ErrVMDisconnected 连接已经被对端关闭
var ErrVMDisconnected = errors.New("vm disconnected")

// Error agent对某个命令返回了非0错误码
type Error struct {
	Code       ErrorCode
	CommandSet byte
	Command    byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("jdwp command %d/%d failed: %s", e.CommandSet, e.Command, e.Code)
}

// IsErrorCode 判断err是否是指定错误码的jdwp错误
func IsErrorCode(err error, code ErrorCode) bool {
	var jerr *Error
	return errors.As(err, &jerr) && jerr.Code == code
}
