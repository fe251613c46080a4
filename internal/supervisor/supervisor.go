// Package supervisor 监听控制端口，按 start/stop 报文启停 relay 进程，
// 并在 relay 退出时向控制端回报一次 INFO 或 ERROR
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/linjuya-lu/uart_udp_relay/internal/control"
	"github.com/linjuya-lu/uart_udp_relay/internal/procmgr"
)

// maxReport 保证回报能装进控制端 1024 字节的接收缓冲
const maxReport = 1000

// Launcher 启动一个向 targetIP 转发的 relay
type Launcher interface {
	Launch(targetIP, runID string) (procmgr.Process, error)
}

// Notifier 接收状态事件，例如发布到 MQTT
type Notifier interface {
	Publish(v any) error
}

// Status 是对外发布的状态事件
type Status struct {
	Time       time.Time `json:"time"`
	State      string    `json:"state"`
	Event      string    `json:"event"`
	RunID      string    `json:"runId,omitempty"`
	Controller string    `json:"controller,omitempty"`
	Pid        int       `json:"pid,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Message    string    `json:"message,omitempty"`
}

type Options struct {
	ControlPort int
	// ReportPort 是控制端接收回报的端口，默认与 ControlPort 相同
	ReportPort  int
	GracePeriod time.Duration
}

// Supervisor 持有状态机、控制端地址和 relay 进程句柄，三者由同一把锁保护
type Supervisor struct {
	opts     Options
	launcher Launcher
	notifier Notifier
	logger   *zap.SugaredLogger

	mu         sync.Mutex
	machine    *fsm.FSM
	controller net.IP
	proc       procmgr.Process
	runID      string
	monitor    chan struct{}
	reporter   control.Reporter
}

func New(logger *zap.SugaredLogger, launcher Launcher, notifier Notifier, opts Options) *Supervisor {
	if opts.ReportPort == 0 {
		opts.ReportPort = opts.ControlPort
	}
	return &Supervisor{
		opts:     opts,
		launcher: launcher,
		notifier: notifier,
		logger:   logger,
		machine:  newMachine(logger),
	}
}

// State 返回当前状态
func (s *Supervisor) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// Run 绑定控制端口并处理报文直到 ctx 取消
func (s *Supervisor) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: s.opts.ControlPort})
	if err != nil {
		return fmt.Errorf("listen on control port %d: %w", s.opts.ControlPort, err)
	}
	return s.Serve(ctx, conn)
}

// Serve 在已绑定的 conn 上接收控制报文直到 ctx 取消，退出前停止仍在运行的 relay。
// 回报也经由 conn 发出。
func (s *Supervisor) Serve(ctx context.Context, conn *net.UDPConn) error {
	s.mu.Lock()
	s.reporter = control.NewUDPReporter(conn, s.opts.ReportPort)
	s.mu.Unlock()
	s.logger.Infof("Listening for control packets on %s", conn.LocalAddr())

	// 取消时只打断读取；socket 在 relay 停止、回报发出之后才关闭
	stopRead := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stopRead()
	defer conn.Close()

	buf := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warnf("Receiving control packet: %v", err)
			continue
		}
		s.logger.Debugf("Control packet from %s: %q", addr, buf[:n])
		s.HandlePacket(ctx, buf[:n])
	}

	s.StopRelay(context.Background())
	s.logger.Info("Supervisor stopped")
	return nil
}

// HandlePacket 解析并执行一条控制报文；格式错误或与当前状态不符的报文只记录日志
func (s *Supervisor) HandlePacket(ctx context.Context, data []byte) {
	pkt, err := control.ParseCommand(data)
	if err != nil {
		s.logger.Warnf("Ignoring control packet: %v", err)
		return
	}
	switch pkt.Command {
	case control.CommandStart:
		s.start(pkt.SenderIP)
	case control.CommandStop:
		s.StopRelay(ctx)
	}
}

func (s *Supervisor) start(controller net.IP) {
	s.mu.Lock()
	if cur := s.machine.Current(); cur != StateAwaitingStart {
		s.mu.Unlock()
		s.logger.Infof("Ignoring start from %s in state %s", controller, cur)
		return
	}

	runID := uuid.NewString()
	proc, err := s.launcher.Launch(controller.String(), runID)
	if err != nil {
		s.mu.Unlock()
		s.logger.Errorf("Starting relay for %s: %v", controller, err)
		s.report(controller, control.SeverityError, err.Error())
		s.publish(Status{State: StateAwaitingStart, Event: "launch_failed", RunID: runID,
			Controller: controller.String(), Severity: string(control.SeverityError), Message: err.Error()})
		return
	}

	done := make(chan struct{})
	s.controller = controller
	s.proc = proc
	s.runID = runID
	s.monitor = done
	if err := s.machine.Event(context.Background(), EventStart); err != nil {
		s.logger.Errorf("State transition %s: %v", EventStart, err)
	}
	s.mu.Unlock()

	s.logger.Infow("Relay running", "controller", controller.String(), "pid", proc.Pid(), "run", runID)
	s.publish(Status{State: StateAwaitingStop, Event: EventStart, RunID: runID,
		Controller: controller.String(), Pid: proc.Pid()})
	go s.watch(proc, controller, runID, done)
}

// StopRelay 停止正在运行的 relay：INT -> grace -> TERM -> grace -> KILL，
// 并等待退出监视结束（其回报已经发出）
func (s *Supervisor) StopRelay(ctx context.Context) {
	s.mu.Lock()
	if cur := s.machine.Current(); cur != StateAwaitingStop {
		s.mu.Unlock()
		s.logger.Infof("Ignoring stop in state %s", cur)
		return
	}
	proc, done, runID := s.proc, s.monitor, s.runID
	s.proc = nil
	if err := s.machine.Event(context.Background(), EventStop); err != nil {
		s.logger.Errorf("State transition %s: %v", EventStop, err)
	}
	s.mu.Unlock()

	s.logger.Infow("Stopping relay", "pid", proc.Pid(), "run", runID)
	procmgr.Shutdown(ctx, s.logger, proc, s.opts.GracePeriod)
	<-done
}

// watch 等待 relay 退出并回报一次；relay 自行退出时把状态机带回 AwaitingStart
func (s *Supervisor) watch(proc procmgr.Process, controller net.IP, runID string, done chan struct{}) {
	defer close(done)
	st := proc.Wait()

	event := "stopped"
	s.mu.Lock()
	if s.proc == proc {
		s.proc = nil
		event = EventExited
		if err := s.machine.Event(context.Background(), EventExited); err != nil {
			s.logger.Errorf("State transition %s: %v", EventExited, err)
		}
	}
	state := s.machine.Current()
	s.mu.Unlock()

	sev, msg := control.SeverityInfo, fmt.Sprintf("relay (pid %d) %s", proc.Pid(), st)
	if !st.Clean() {
		sev = control.SeverityError
		msg = (&procmgr.UnexpectedExitError{Pid: proc.Pid(), Status: st}).Error()
	}
	msg = truncate(msg, maxReport)
	if sev == control.SeverityError {
		s.logger.Errorw("Relay exited unexpectedly", "run", runID, "status", st.String())
	} else {
		s.logger.Infow("Relay exited", "run", runID, "status", st.String())
	}
	s.report(controller, sev, msg)
	s.publish(Status{State: state, Event: event, RunID: runID, Controller: controller.String(),
		Pid: proc.Pid(), Severity: string(sev), Message: msg})
}

// truncate 截到不超过 n 字节，不切断多字节字符
func truncate(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

func (s *Supervisor) report(to net.IP, sev control.Severity, msg string) {
	s.mu.Lock()
	r := s.reporter
	s.mu.Unlock()
	if r == nil {
		return
	}
	if err := r.Report(to, sev, msg); err != nil {
		s.logger.Warnf("Reporting to controller: %v", err)
	}
}

func (s *Supervisor) publish(st Status) {
	if s.notifier == nil {
		return
	}
	st.Time = time.Now()
	if err := s.notifier.Publish(st); err != nil {
		s.logger.Warnf("Publishing status: %v", err)
	}
}
