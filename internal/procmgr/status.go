package procmgr

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitStatus 描述 relay 进程的退出方式
type ExitStatus struct {
	Code      int            // 正常退出码，被信号终止时为 -1
	Signal    syscall.Signal // 终止进程的信号
	Err       error          // Wait 本身的错误
	Requested bool           // supervisor 是否发过停止信号
	Tail      []string       // stdout/stderr 的最后若干行
}

// Clean 判断是否算正常结束：退出码 0，或 supervisor 发出停止信号后
// 被 INT/TERM/KILL 终止（含 128+INT/TERM 的退出码）
func (s ExitStatus) Clean() bool {
	if s.Err != nil {
		return false
	}
	if s.Code == 0 {
		return true
	}
	if !s.Requested {
		return false
	}
	switch s.Code {
	case 128 + int(unix.SIGINT), 128 + int(unix.SIGTERM):
		return true
	}
	switch s.Signal {
	case unix.SIGINT, unix.SIGTERM, unix.SIGKILL:
		return true
	}
	return false
}

func (s ExitStatus) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("wait failed: %v", s.Err)
	case s.Code >= 0:
		return fmt.Sprintf("exited with status %d", s.Code)
	default:
		return fmt.Sprintf("killed by signal %s", unix.SignalName(s.Signal))
	}
}

// TailString 把输出尾部拼成一行
func (s ExitStatus) TailString() string {
	return strings.Join(s.Tail, " | ")
}
