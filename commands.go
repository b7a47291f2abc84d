package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fansqz/jdwp-debugger/config"
	. "github.com/fansqz/jdwp-debugger/debugger"
	"github.com/fansqz/jdwp-debugger/debugger/java_debugger"
	"github.com/fansqz/jdwp-debugger/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func debuggerFactory(cfg *config.Config) DebuggerFactory {
	return func(output func(string)) Debugger {
		return java_debugger.NewJavaDebuggerWithConfig(cfg, output)
	}
}

// perSessionPort 并发的会话各自分配空闲端口，否则后启动的会话可能连到别的会话的被调试程序
func perSessionPort(cfg *config.Config) *config.Config {
	c := *cfg
	c.Attach.Port = 0
	return &c
}

// runCommand 运行一次调试会话，退出码和被调试程序一致
func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "debug a single java source file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "java source file"},
			&cli.IntFlag{Name: "line", Aliases: []string{"l"}, Usage: "breakpoint line"},
			&cli.BoolFlag{Name: "demo", Usage: "debug the built-in demo program"},
			&cli.IntFlag{Name: "port", Usage: "jdwp port, 0 picks a free port", Value: -1},
			&cli.BoolFlag{Name: "events", Usage: "print session events as json lines"},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			if port := c.Int("port"); port >= 0 {
				cfg.Attach.Port = port
			}
			option := &StartOption{Breakpoint: c.Int("line")}
			switch {
			case c.Bool("demo"):
				option.Code = java_debugger.DemoCode
				if !c.IsSet("line") {
					option.Breakpoint = java_debugger.DemoBreakpoint
				}
			case c.String("file") != "":
				data, err := os.ReadFile(c.String("file"))
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				option.Code = string(data)
			default:
				return cli.Exit("either --file or --demo is required", 2)
			}
			encoder := json.NewEncoder(os.Stdout)
			if c.Bool("events") {
				option.Callback = func(event interface{}) {
					if converted := protocol.ConvertEvent(event); converted != nil {
						_ = encoder.Encode(converted)
					}
				}
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			debugger := java_debugger.NewJavaDebuggerWithConfig(cfg, func(output string) {
				_, _ = os.Stdout.WriteString(output)
			})
			report := debugger.StartSession(ctx, option)

			summary, _ := json.MarshalIndent(report, "", "  ")
			fmt.Fprintln(os.Stderr, string(summary))
			if report.Err != nil {
				return cli.Exit(report.Err.Error(), 1)
			}
			if report.ExitCode != 0 {
				return cli.Exit("", report.ExitCode)
			}
			return nil
		},
	}
}

// dapCommand 以DAP协议对外提供调试
func dapCommand() *cli.Command {
	return &cli.Command{
		Name:  "dap",
		Usage: "serve the debug adapter protocol over tcp",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "TCP port to listen on"},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			port := cfg.Server.DAPPort
			if c.IsSet("port") {
				port = c.String("port")
			}
			// 监听端口
			listener, err := net.Listen("tcp", ":"+port)
			if err != nil {
				return cli.Exit(fmt.Sprintf("listen at %s fail, err = %v", port, err), 1)
			}
			defer listener.Close()
			fmt.Printf("started listening at: %s\n", listener.Addr().String())

			newDebugger := debuggerFactory(perSessionPort(cfg))
			for {
				conn, err := listener.Accept()
				if err != nil {
					if errors.Is(err, net.ErrClosed) {
						return nil
					}
					logrus.Errorf("[dap] accept fail, err = %v", err)
					continue
				}
				// Handle multiple client connections concurrently
				go handleConnection(conn, newDebugger)
			}
		},
	}
}

// httpCommand 以http接口对外提供调试
func httpCommand() *cli.Command {
	return &cli.Command{
		Name:  "http",
		Usage: "serve the http api",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address"},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			addr := cfg.Server.HTTPAddr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.RealIP)
			r.Use(middleware.Recoverer)
			NewDebuggerHandler(debuggerFactory(cfg)).RegisterRoutes(r)

			srv := &http.Server{
				Addr:        addr,
				Handler:     r,
				ReadTimeout: 30 * time.Second,
				IdleTimeout: 120 * time.Second,
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logrus.Infof("[http] listening at %s", addr)
			fmt.Printf("started listening at: %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}
