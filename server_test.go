package main

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dapClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
	seq    int
}

func newDAPClient(t *testing.T, factory DebuggerFactory) *dapClient {
	clientConn, serverConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handleConnection(serverConn, factory)
	}()
	t.Cleanup(func() {
		_ = clientConn.Close()
		<-done
	})
	return &dapClient{t: t, conn: clientConn, reader: bufio.NewReader(clientConn)}
}

func (c *dapClient) request(command string) dap.Request {
	c.seq++
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.seq, Type: "request"},
		Command:         command,
	}
}

func (c *dapClient) send(message dap.Message) {
	require.NoError(c.t, dap.WriteProtocolMessage(c.conn, message))
}

func (c *dapClient) read() dap.Message {
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	message, err := dap.ReadProtocolMessage(c.reader)
	require.NoError(c.t, err)
	return message
}

func TestDAPSession(t *testing.T) {
	factory, started := newFakeFactory(false)
	client := newDAPClient(t, factory)

	client.send(&dap.InitializeRequest{Request: client.request("initialize")})
	initialize, ok := client.read().(*dap.InitializeResponse)
	require.True(t, ok)
	assert.True(t, initialize.Body.SupportsConfigurationDoneRequest)
	_, ok = client.read().(*dap.InitializedEvent)
	require.True(t, ok)

	client.send(&dap.LaunchRequest{
		Request:   client.request("launch"),
		Arguments: json.RawMessage(`{"code": "public class A { public static void main(String[] a) {} }", "language": "java"}`),
	})
	_, ok = client.read().(*dap.LaunchResponse)
	require.True(t, ok)

	setBreakpoints := &dap.SetBreakpointsRequest{Request: client.request("setBreakpoints")}
	setBreakpoints.Arguments.Breakpoints = []dap.SourceBreakpoint{{Line: 8}, {Line: 12}}
	client.send(setBreakpoints)
	breakpoints, ok := client.read().(*dap.SetBreakpointsResponse)
	require.True(t, ok)
	require.Len(t, breakpoints.Body.Breakpoints, 2)
	assert.True(t, breakpoints.Body.Breakpoints[0].Verified)
	assert.False(t, breakpoints.Body.Breakpoints[1].Verified)

	client.send(&dap.ConfigurationDoneRequest{Request: client.request("configurationDone")})
	_, ok = client.read().(*dap.ConfigurationDoneResponse)
	require.True(t, ok)

	var events []string
	for {
		message := client.read()
		event, ok := message.(dap.EventMessage)
		require.True(t, ok, "unexpected message %#v", message)
		events = append(events, event.GetEvent().Event)
		if event.GetEvent().Event == "stopped" {
			assert.Equal(t, "breakpoint", message.(*dap.StoppedEvent).Body.Reason)
		}
		if event.GetEvent().Event == "terminated" {
			break
		}
	}
	assert.Equal(t, []string{"output", "breakpoint", "stopped", "continued", "exited", "terminated"}, events)

	option := <-started
	assert.Equal(t, 8, option.Breakpoint)
	assert.Contains(t, option.Code, "public class A")

	client.send(&dap.DisconnectRequest{Request: client.request("disconnect")})
	_, ok = client.read().(*dap.DisconnectResponse)
	require.True(t, ok)
}

func TestDAPTerminateRunningSession(t *testing.T) {
	factory, started := newFakeFactory(true)
	client := newDAPClient(t, factory)

	client.send(&dap.ConfigurationDoneRequest{Request: client.request("configurationDone")})
	_, ok := client.read().(*dap.ConfigurationDoneResponse)
	require.True(t, ok)
	_, ok = client.read().(*dap.OutputEvent)
	require.True(t, ok)
	<-started

	client.send(&dap.TerminateRequest{Request: client.request("terminate")})
	var messages []dap.Message
	for {
		message := client.read()
		messages = append(messages, message)
		if _, ok := message.(*dap.TerminateResponse); ok {
			break
		}
	}
	// 会话结束的事件先于terminate的响应
	_, ok = messages[len(messages)-2].(*dap.TerminatedEvent)
	assert.True(t, ok)
}

func TestDAPUnsupportedRequest(t *testing.T) {
	factory, _ := newFakeFactory(false)
	client := newDAPClient(t, factory)

	client.send(&dap.StackTraceRequest{Request: client.request("stackTrace")})
	response, ok := client.read().(*dap.ErrorResponse)
	require.True(t, ok)
	assert.False(t, response.Success)
	assert.Contains(t, response.Message, "not yet supported")
}
