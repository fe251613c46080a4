// Package procmgr 负责启动 relay 子进程、收集其输出并按 INT -> TERM -> KILL 逐级停止
package procmgr

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// DefaultTailLines 退出报告中保留的输出行数
const DefaultTailLines = 20

// Process 是一个运行中的 relay 进程
type Process interface {
	Pid() int
	// Signal 向整个进程组发送信号，进程已退出时不报错
	Signal(sig syscall.Signal) error
	// Done 在进程退出且输出读完后关闭
	Done() <-chan struct{}
	// Wait 阻塞到进程退出，可多次调用
	Wait() ExitStatus
}

// Options 描述如何启动 relay
type Options struct {
	Path             string
	Args             []string
	Elevate          bool   // 通过 sudo -S 启动
	SudoPasswordFile string // Elevate 时读取，经 stdin 交给 sudo
	TailLines        int
}

// Launcher 直接 exec relay，不经过 shell
type Launcher struct {
	opts   Options
	logger *zap.SugaredLogger
}

func NewLauncher(logger *zap.SugaredLogger, opts Options) *Launcher {
	if opts.TailLines <= 0 {
		opts.TailLines = DefaultTailLines
	}
	return &Launcher{opts: opts, logger: logger}
}

// Argv 返回实际执行的命令行
func (l *Launcher) Argv(targetIP, runID string) []string {
	argv := make([]string, 0, len(l.opts.Args)+8)
	if l.opts.Elevate {
		argv = append(argv, "sudo", "-S", "-p", "", "--")
	}
	argv = append(argv, l.opts.Path)
	argv = append(argv, l.opts.Args...)
	if runID != "" {
		argv = append(argv, "--run-id", runID)
	}
	return append(argv, "--target-ip", targetIP, "start")
}

// Launch 启动 relay，使其向 targetIP 转发。子进程单独成组，便于整组发信号。
func (l *Launcher) Launch(targetIP, runID string) (Process, error) {
	argv := l.Argv(targetIP, runID)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if l.opts.Elevate {
		pw, err := os.ReadFile(l.opts.SudoPasswordFile)
		if err != nil {
			return nil, &ProcessLaunchError{Path: l.opts.Path, Err: fmt.Errorf("read sudo password: %w", err)}
		}
		pw = bytes.TrimRight(pw, "\r\n")
		cmd.Stdin = io.MultiReader(bytes.NewReader(pw), strings.NewReader("\n"))
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessLaunchError{Path: l.opts.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ProcessLaunchError{Path: l.opts.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &ProcessLaunchError{Path: l.opts.Path, Err: err}
	}

	c := &child{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
		tail:   newTailBuffer(l.opts.TailLines),
		logger: l.logger.With("pid", cmd.Process.Pid, "run", runID),
	}
	c.logger.Infof("Relay started: %s", strings.Join(argv, " "))

	var streams sync.WaitGroup
	streams.Add(2)
	go c.stream(&streams, stdout, "stdout")
	go c.stream(&streams, stderr, "stderr")
	go func() {
		// 管道读完后才能 Wait
		streams.Wait()
		c.finish(cmd.Wait())
	}()
	return c, nil
}

type child struct {
	cmd    *exec.Cmd
	pid    int
	done   chan struct{}
	tail   *tailBuffer
	logger *zap.SugaredLogger

	mu        sync.Mutex
	requested bool
	status    ExitStatus
}

func (c *child) Pid() int { return c.pid }

func (c *child) Done() <-chan struct{} { return c.done }

func (c *child) Wait() ExitStatus {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *child) Signal(sig syscall.Signal) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	c.mu.Lock()
	c.requested = true
	c.mu.Unlock()
	return signalGroup(c.pid, sig)
}

func (c *child) stream(wg *sync.WaitGroup, pipe io.Reader, name string) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		c.tail.add(line)
		c.logger.Infow(line, "stream", name)
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debugf("Error scanning %s: %v", name, err)
	}
}

func (c *child) finish(err error) {
	st := ExitStatus{Code: -1, Tail: c.tail.snapshot()}
	if ps := c.cmd.ProcessState; ps != nil {
		st.Code = ps.ExitCode()
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			st.Signal = ws.Signal()
		}
	} else if err != nil {
		st.Err = err
	}

	c.mu.Lock()
	st.Requested = c.requested
	c.status = st
	c.mu.Unlock()

	c.logger.Infof("Relay %s", st)
	close(c.done)
}
