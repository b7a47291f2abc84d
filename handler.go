package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/fansqz/jdwp-debugger/constants"
	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/fansqz/jdwp-debugger/debugger/java_debugger"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/fansqz/jdwp-debugger/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// DebuggerFactory 创建调试器，output接收被调试程序的实时输出
type DebuggerFactory func(output func(string)) Debugger

// DebuggerHandler http接口，同一时间只运行一个调试会话
type DebuggerHandler struct {
	newDebugger DebuggerFactory

	running  sync.Mutex
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewDebuggerHandler(newDebugger DebuggerFactory) *DebuggerHandler {
	return &DebuggerHandler{newDebugger: newDebugger}
}

func (d *DebuggerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", d.handleHealth)
	r.Route("/api/debug", func(r chi.Router) {
		r.Post("/", d.handleStartDebugRequest)
		r.Delete("/", d.handleTerminateRequest)
	})
}

func (d *DebuggerHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *DebuggerHandler) handleStartDebugRequest(w http.ResponseWriter, r *http.Request) {
	req := protocol.StartDebugRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.Warnf("parse request error, err = %v", err)
		d.sendResponse(w, http.StatusBadRequest, req.Sequence, false, err.Error(), nil)
		return
	}
	if req.Type != "" && req.Type != constants.StartDebug {
		d.sendResponse(w, http.StatusBadRequest, req.Sequence, false, fmt.Sprintf("unexpected request type %s", req.Type), nil)
		return
	}
	if req.Language != "" && req.Language != constants.LanguageJava {
		d.sendResponse(w, http.StatusBadRequest, req.Sequence, false, e.ErrLanguageNotSupported.Error(), nil)
		return
	}
	if req.Code == "" {
		req.Code = java_debugger.DemoCode
		if req.Breakpoint == 0 {
			req.Breakpoint = java_debugger.DemoBreakpoint
		}
	}
	if !d.running.TryLock() {
		d.sendResponse(w, http.StatusConflict, req.Sequence, false, "debug session is running", nil)
		return
	}
	defer d.running.Unlock()

	ctx, cancel := context.WithCancel(r.Context())
	d.setCancel(cancel)
	defer func() {
		d.setCancel(nil)
		cancel()
	}()

	var mu sync.Mutex
	events := make([]interface{}, 0)
	collect := func(event interface{}) {
		if converted := protocol.ConvertEvent(event); converted != nil {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, converted)
		}
	}
	debugger := d.newDebugger(func(output string) {
		collect(NewOutputEvent(output))
	})
	report := debugger.StartSession(ctx, &StartOption{
		Code:       req.Code,
		Breakpoint: req.Breakpoint,
		Callback:   collect,
	})

	message := ""
	if report.Err != nil {
		message = report.Err.Error()
	}
	mu.Lock()
	defer mu.Unlock()
	d.sendResponse(w, http.StatusOK, req.Sequence, report.Err == nil, message, &protocol.SessionResult{
		Report: report,
		Events: events,
	})
}

// handleTerminateRequest 请求体可以为空
func (d *DebuggerHandler) handleTerminateRequest(w http.ResponseWriter, r *http.Request) {
	req := protocol.TerminateRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logrus.Warnf("parse request error, err = %v", err)
		d.sendResponse(w, http.StatusBadRequest, req.Sequence, false, err.Error(), nil)
		return
	}
	if req.Type != "" && req.Type != constants.Terminate {
		d.sendResponse(w, http.StatusBadRequest, req.Sequence, false, fmt.Sprintf("unexpected request type %s", req.Type), nil)
		return
	}
	d.cancelMu.Lock()
	cancel := d.cancel
	d.cancelMu.Unlock()
	if cancel == nil {
		d.sendResponse(w, http.StatusConflict, req.Sequence, false, "debug not start", nil)
		return
	}
	cancel()
	d.sendResponse(w, http.StatusOK, req.Sequence, true, "", nil)
}

func (d *DebuggerHandler) setCancel(cancel context.CancelFunc) {
	d.cancelMu.Lock()
	defer d.cancelMu.Unlock()
	d.cancel = cancel
}

func (d *DebuggerHandler) sendResponse(w http.ResponseWriter, status int, sequence uint, success bool, message string, body interface{}) {
	writeJSON(w, status, &protocol.Response{
		Sequence: sequence,
		Success:  success,
		Message:  message,
		Data:     body,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("marshal reponse fail, err = %v", err)
	}
}
