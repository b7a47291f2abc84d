package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fansqz/jdwp-debugger/constants"
	"github.com/fansqz/jdwp-debugger/debugger/java_debugger"
	"github.com/fansqz/jdwp-debugger/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestServer(t *testing.T, factory DebuggerFactory) *httptest.Server {
	r := chi.NewRouter()
	NewDebuggerHandler(factory).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func postDebug(t *testing.T, url string, req *protocol.StartDebugRequest) (int, gjson.Result) {
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(url+"/api/debug", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(buf.Bytes())
}

func TestHealth(t *testing.T) {
	factory, _ := newFakeFactory(false)
	server := newTestServer(t, factory)
	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartDebug(t *testing.T) {
	factory, started := newFakeFactory(false)
	server := newTestServer(t, factory)

	status, body := postDebug(t, server.URL, &protocol.StartDebugRequest{Sequence: 7, Code: java_debugger.DemoCode, Breakpoint: 9})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(7), body.Get("sequence").Int())
	assert.True(t, body.Get("success").Bool())
	assert.Equal(t, "hit-breakpoint", body.Get("data.report.outcome.type").String())
	assert.Equal(t, int64(9), body.Get("data.report.outcome.location.line").Int())

	var kinds []string
	for _, event := range body.Get("data.events").Array() {
		kinds = append(kinds, event.Get("event").String())
	}
	assert.Equal(t, []string{"compile", "output", "breakpoint", "stopped", "exited", "terminated"}, kinds)
	assert.Equal(t, 9, (<-started).Breakpoint)
}

func TestStartDebugDefaultsToDemo(t *testing.T) {
	factory, started := newFakeFactory(false)
	server := newTestServer(t, factory)

	status, _ := postDebug(t, server.URL, &protocol.StartDebugRequest{})
	assert.Equal(t, http.StatusOK, status)
	option := <-started
	assert.Equal(t, java_debugger.DemoCode, option.Code)
	assert.Equal(t, java_debugger.DemoBreakpoint, option.Breakpoint)
}

func TestStartDebugRejectsLanguage(t *testing.T) {
	factory, _ := newFakeFactory(false)
	server := newTestServer(t, factory)

	status, body := postDebug(t, server.URL, &protocol.StartDebugRequest{Language: "c", Code: "int main() {}"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Get("success").Bool())
}

func TestTerminateDebug(t *testing.T) {
	factory, started := newFakeFactory(true)
	server := newTestServer(t, factory)

	done := make(chan gjson.Result, 1)
	go func() {
		_, body := postDebug(t, server.URL, &protocol.StartDebugRequest{})
		done <- body
	}()
	<-started

	// 同一时间只能有一个会话
	status, _ := postDebug(t, server.URL, &protocol.StartDebugRequest{})
	assert.Equal(t, http.StatusConflict, status)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/debug", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case body := <-done:
		assert.Equal(t, "cancelled", body.Get("data.report.outcome.type").String())
	case <-time.After(5 * time.Second):
		t.Fatal("session was not cancelled")
	}

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDebugRequestType(t *testing.T) {
	factory, _ := newFakeFactory(false)
	server := newTestServer(t, factory)

	status, _ := postDebug(t, server.URL, &protocol.StartDebugRequest{Type: constants.StartDebug})
	assert.Equal(t, http.StatusOK, status)

	status, body := postDebug(t, server.URL, &protocol.StartDebugRequest{Type: constants.Terminate, Sequence: 3})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, int64(3), body.Get("sequence").Int())

	data, err := json.Marshal(&protocol.TerminateRequest{Type: constants.StartDebug})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/debug", bytes.NewReader(data))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 没有正在运行的会话
	data, err = json.Marshal(&protocol.TerminateRequest{Type: constants.Terminate, Sequence: 4})
	require.NoError(t, err)
	req, err = http.NewRequest(http.MethodDelete, server.URL+"/api/debug", bytes.NewReader(data))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
