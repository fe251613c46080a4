package procmgr

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// signalGroup 向 pid 所在进程组发信号，进程组已不存在视为成功
func signalGroup(pid int, sig syscall.Signal) error {
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s to process group %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}

// Shutdown 依次发送 SIGINT、SIGTERM，每次等待 grace；仍未退出则 SIGKILL 后阻塞等待。
// ctx 取消时直接跳到 SIGKILL。
func Shutdown(ctx context.Context, logger *zap.SugaredLogger, p Process, grace time.Duration) ExitStatus {
	for _, sig := range []syscall.Signal{unix.SIGINT, unix.SIGTERM} {
		if err := p.Signal(sig); err != nil {
			logger.Warnf("Sending %s to relay (pid %d): %v", unix.SignalName(sig), p.Pid(), err)
		}
		if waitDone(ctx, p, grace) {
			return p.Wait()
		}
		logger.Warnf("Relay (pid %d) still running %s after %s", p.Pid(), grace, unix.SignalName(sig))
	}
	if err := p.Signal(unix.SIGKILL); err != nil {
		logger.Errorf("Sending SIGKILL to relay (pid %d): %v", p.Pid(), err)
	}
	return p.Wait()
}

func waitDone(ctx context.Context, p Process, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.Done():
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
