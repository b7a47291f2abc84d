package java_debugger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	. "github.com/fansqz/jdwp-debugger/debugger"
	e "github.com/fansqz/jdwp-debugger/error"
	"github.com/fansqz/jdwp-debugger/utils"
	"github.com/fansqz/jdwp-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const outputDrainTimeout = 2 * time.Second

// JavaLauncher 以调试模式启动java程序
type JavaLauncher struct {
	// Java java可执行文件
	Java string
	// Agent jdwp agent的名称
	Agent string
	// UsePTY 通过伪终端收集输出，否则使用管道
	UsePTY bool
	// OutputLimit 保留的输出字节数
	OutputLimit int
	// Output 用户程序输出的回调，可以为空
	Output func(string)
}

func NewJavaLauncher(java string, usePTY bool, outputLimit int) *JavaLauncher {
	return &JavaLauncher{
		Java:        java,
		Agent:       "jdwp",
		UsePTY:      usePTY,
		OutputLimit: outputLimit,
	}
}

// Launch 启动被调试程序后立即返回，agent是否已经开始监听由调用方通过重试连接来确认
func (j *JavaLauncher) Launch(ctx context.Context, artifact *CompiledArtifact, port int) (Process, error) {
	args := []string{
		fmt.Sprintf("-agentlib:%s=transport=dt_socket,server=y,suspend=n,address=%d", j.Agent, port),
		"-cp", artifact.WorkPath,
		artifact.EntryPoint,
	}
	cmd := exec.Command(j.Java, args...)
	cmd.Dir = artifact.WorkPath

	process := &DebuggeeProcess{
		cmd:      cmd,
		status:   utils.NewStatusManager(utils.Launching),
		output:   utils.NewCircularBuffer(j.OutputLimit),
		copyDone: make(chan struct{}),
	}
	var err error
	if j.UsePTY {
		err = process.startWithPTY(ctx, j.Output)
	} else {
		err = process.startWithPipe(ctx, j.Output)
	}
	if err != nil {
		logrus.Errorf("[JavaLauncher] start debuggee fail, err = %v", err)
		return nil, &e.LaunchError{Err: err}
	}
	process.status.Set(utils.Running)
	logrus.Infof("[JavaLauncher] debuggee %s started, pid = %d, port = %d", artifact.EntryPoint, process.Pid(), port)
	return process, nil
}

// FreePort 让系统分配一个空闲端口
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// DebuggeeProcess 被调试进程，stdout和stderr合并输出
type DebuggeeProcess struct {
	cmd    *exec.Cmd
	status *utils.StatusManager
	// reader 输出的读取端，pty的master或者管道的读端
	reader   *os.File
	output   *utils.CircularBuffer
	copyDone chan struct{}

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

func (p *DebuggeeProcess) startWithPTY(ctx context.Context, onOutput func(string)) error {
	ptm, pts, err := pty.Open()
	if err != nil {
		return err
	}
	// 设置为raw模式，避免换行被转换以及回显
	if _, err = term.MakeRaw(int(ptm.Fd())); err != nil {
		logrus.Warnf("[DebuggeeProcess] make raw fail, err = %v", err)
	}
	p.cmd.Stdout = pts
	p.cmd.Stderr = pts
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err = p.cmd.Start(); err != nil {
		_ = ptm.Close()
		_ = pts.Close()
		return err
	}
	// 子进程已经持有pts，父进程关闭后子进程退出时读取端才能读到EOF
	_ = pts.Close()
	p.reader = ptm
	gosync.Go(ctx, func(ctx context.Context) {
		p.copyOutput(onOutput)
	})
	return nil
}

func (p *DebuggeeProcess) startWithPipe(ctx context.Context, onOutput func(string)) error {
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	p.cmd.Stdout = w
	p.cmd.Stderr = w
	if err = p.cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return err
	}
	_ = w.Close()
	p.reader = r
	gosync.Go(ctx, func(ctx context.Context) {
		p.copyOutput(onOutput)
	})
	return nil
}

// copyOutput 循环读取用户输出
func (p *DebuggeeProcess) copyOutput(onOutput func(string)) {
	defer close(p.copyDone)
	b := make([]byte, 1024)
	for {
		n, err := p.reader.Read(b)
		if n > 0 {
			_, _ = p.output.Write(b[:n])
			if onOutput != nil {
				onOutput(string(b[:n]))
			}
		}
		if err != nil {
			// pty在子进程退出后返回EIO
			if err != io.EOF && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				logrus.Warnf("[DebuggeeProcess] read output fail, err = %v", err)
			}
			return
		}
	}
}

func (p *DebuggeeProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *DebuggeeProcess) Alive() bool {
	if p.status.Is(utils.Exited) {
		return false
	}
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Wait 只会真正wait一次，之后返回缓存的退出码
func (p *DebuggeeProcess) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.exitCode, p.waitErr = exitCodeOf(err)
		// 等待输出读取完
		select {
		case <-p.copyDone:
		case <-time.After(outputDrainTimeout):
			logrus.Warnf("[DebuggeeProcess] drain output timeout")
		}
		_ = p.reader.Close()
		p.status.Set(utils.Exited)
		logrus.Infof("[DebuggeeProcess] debuggee exited, code = %d", p.exitCode)
	})
	return p.exitCode, p.waitErr
}

func (p *DebuggeeProcess) Kill() error {
	if p.status.Is(utils.Exited) {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *DebuggeeProcess) Output() string {
	return p.output.String()
}

// exitCodeOf 被信号杀死的进程返回-1
func exitCodeOf(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return -1, nil
			}
			return status.ExitStatus(), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
