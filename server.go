package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/fansqz/jdwp-debugger/constants"
	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/fansqz/jdwp-debugger/debugger/java_debugger"
	"github.com/fansqz/jdwp-debugger/utils/gosync"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// mainThreadID 被调试程序只有一个用户线程
const mainThreadID = 1

// handleConnection handles a connection from a single client.
// It reads and decodes the incoming data and dispatches it
// to the request handlers until the client goes away.
func handleConnection(conn net.Conn, newDebugger DebuggerFactory) {
	// 创建调试session
	debugSession := &DebugSession{
		rw:          bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		newDebugger: newDebugger,
	}

	for {
		err := debugSession.handleRequest()
		if err != nil {
			var fieldErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &fieldErr) {
				// 不认识的请求不影响后续请求
				debugSession.send(newErrorResponse(fieldErr.Seq, fieldErr.FieldValue, fieldErr.Error()))
				continue
			}
			if err == io.EOF {
				logrus.Infof("[DebugSession] No more data to read")
			} else {
				logrus.Errorf("[DebugSession] Server error, err = %v", err)
			}
			break
		}
	}

	logrus.Infof("[DebugSession] Closing connection from %v", conn.RemoteAddr())
	debugSession.stop()
	_ = conn.Close()
}

// DebugSession 一个DAP客户端对应的调试会话
type DebugSession struct {
	// rw is used to read requests and write events/responses
	rw *bufio.ReadWriter
	// sendMu 请求处理和调试回调会同时写连接
	sendMu sync.Mutex

	newDebugger DebuggerFactory

	mu         sync.Mutex
	code       string
	breakpoint int
	cancel     context.CancelFunc
	done       chan struct{}
}

func (d *DebugSession) handleRequest() error {
	request, err := dap.ReadProtocolMessage(d.rw.Reader)
	if err != nil {
		return err
	}
	d.dispatchRequest(request)
	return nil
}

func (d *DebugSession) dispatchRequest(request dap.Message) {
	switch request := request.(type) {
	case *dap.InitializeRequest:
		d.onInitializeRequest(request)
	case *dap.LaunchRequest:
		d.onLaunchRequest(request)
	case *dap.SetBreakpointsRequest:
		d.onSetBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		d.onConfigurationDoneRequest(request)
	case *dap.ThreadsRequest:
		d.onThreadsRequest(request)
	case *dap.TerminateRequest:
		d.onTerminateRequest(request)
	case *dap.DisconnectRequest:
		d.onDisconnectRequest(request)
	default:
		if req, ok := request.(dap.RequestMessage); ok {
			base := req.GetRequest()
			d.send(newErrorResponse(base.Seq, base.Command, fmt.Sprintf("%s is not yet supported", base.Command)))
			return
		}
		logrus.Warnf("[DebugSession] Unable to process %#v", request)
	}
}

// send Message响应给客户端
func (d *DebugSession) send(message dap.Message) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if err := dap.WriteProtocolMessage(d.rw.Writer, message); err != nil {
		logrus.Warnf("[DebugSession] write message fail, err = %v", err)
		return
	}
	_ = d.rw.Flush()
}

// -----------------------------------------------------------------------
// Request Handlers

func (d *DebugSession) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsTerminateRequest = true
	response.Body.ExceptionBreakpointFilters = []dap.ExceptionBreakpointsFilter{}
	d.send(response)
	// 客户端收到initialized以后开始发送断点，最后以configurationDone结束
	d.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

// onLaunchRequest 启动参数中可以直接给出code，也可以通过program给出源文件
func (d *DebugSession) onLaunchRequest(request *dap.LaunchRequest) {
	args := gjson.ParseBytes(request.Arguments)
	code := args.Get("code").String()
	if program := args.Get("program").String(); code == "" && program != "" {
		data, err := os.ReadFile(program)
		if err != nil {
			d.send(newErrorResponse(request.Seq, request.Command, err.Error()))
			return
		}
		code = string(data)
	}
	if language := args.Get("language").String(); language != "" && language != string(constants.LanguageJava) {
		d.send(newErrorResponse(request.Seq, request.Command, fmt.Sprintf("language %s is not supported", language)))
		return
	}
	d.mu.Lock()
	d.code = code
	if code == "" {
		d.code = java_debugger.DemoCode
		d.breakpoint = java_debugger.DemoBreakpoint
	}
	if line := args.Get("breakpoint"); line.Exists() {
		d.breakpoint = int(line.Int())
	}
	d.mu.Unlock()

	response := &dap.LaunchResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

// onSetBreakpointsRequest 只支持一个断点，多余的断点标记为未验证
func (d *DebugSession) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	breakpoints := request.Arguments.Breakpoints
	d.mu.Lock()
	d.breakpoint = 0
	if len(breakpoints) > 0 {
		d.breakpoint = breakpoints[0].Line
	}
	d.mu.Unlock()

	response := &dap.SetBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Breakpoints = make([]dap.Breakpoint, len(breakpoints))
	for i, b := range breakpoints {
		response.Body.Breakpoints[i].Line = b.Line
		response.Body.Breakpoints[i].Verified = i == 0
		if i > 0 {
			response.Body.Breakpoints[i].Message = "only one breakpoint is supported"
		}
	}
	d.send(response)
}

func (d *DebugSession) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	d.mu.Lock()
	if d.done != nil {
		d.mu.Unlock()
		d.send(newErrorResponse(request.Seq, request.Command, "debug session is running"))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	done := d.done
	option := &StartOption{
		Code:       d.code,
		Breakpoint: d.breakpoint,
		Callback:   d.onDebuggerEvent,
	}
	d.mu.Unlock()

	response := &dap.ConfigurationDoneResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)

	debugger := d.newDebugger(func(output string) {
		d.onDebuggerEvent(NewOutputEvent(output))
	})
	gosync.Go(ctx, func(ctx context.Context) {
		defer close(done)
		report := debugger.StartSession(ctx, option)
		if report.Err != nil {
			d.send(newOutputEvent("stderr", report.Err.Error()+"\n"))
		}
	})
}

func (d *DebugSession) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body.Threads = []dap.Thread{{Id: mainThreadID, Name: "main"}}
	d.send(response)
}

func (d *DebugSession) onTerminateRequest(request *dap.TerminateRequest) {
	d.stop()
	response := &dap.TerminateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

func (d *DebugSession) onDisconnectRequest(request *dap.DisconnectRequest) {
	d.stop()
	response := &dap.DisconnectResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	d.send(response)
}

// stop 取消正在运行的会话并等待它结束
func (d *DebugSession) stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// onDebuggerEvent 把调试器的事件转换成DAP事件
func (d *DebugSession) onDebuggerEvent(event interface{}) {
	switch event := event.(type) {
	case *OutputEvent:
		d.send(newOutputEvent("stdout", event.Output))
	case *CompileEvent:
		if !event.Success {
			d.send(newOutputEvent("stderr", event.Message+"\n"))
		}
	case *BreakpointEvent:
		for _, bp := range event.Breakpoints {
			e := &dap.BreakpointEvent{Event: *newEvent("breakpoint")}
			e.Body.Reason = "changed"
			e.Body.Breakpoint = dap.Breakpoint{
				Line:     bp.Line,
				Verified: event.Reason == constants.NewType,
				Message:  string(event.Skip),
			}
			d.send(e)
		}
	case *StoppedEvent:
		stopped := &dap.StoppedEvent{Event: *newEvent("stopped")}
		stopped.Body.Reason = string(event.Reason)
		stopped.Body.ThreadId = mainThreadID
		stopped.Body.AllThreadsStopped = true
		d.send(stopped)
		// 断点确认以后程序马上继续运行
		continued := &dap.ContinuedEvent{Event: *newEvent("continued")}
		continued.Body.ThreadId = mainThreadID
		continued.Body.AllThreadsContinued = true
		d.send(continued)
	case *ExitedEvent:
		exited := &dap.ExitedEvent{Event: *newEvent("exited")}
		exited.Body.ExitCode = event.ExitCode
		d.send(exited)
	case *TerminatedEvent:
		d.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	}
}

func newOutputEvent(category string, output string) *dap.OutputEvent {
	e := &dap.OutputEvent{Event: *newEvent("output")}
	e.Body.Category = category
	e.Body.Output = output
	return e
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

func newErrorResponse(requestSeq int, command string, message string) *dap.ErrorResponse {
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = message
	er.Body.Error = &dap.ErrorMessage{}
	er.Body.Error.Format = message
	er.Body.Error.Id = 12345
	return er
}
