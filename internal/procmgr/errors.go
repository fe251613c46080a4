package procmgr

import "fmt"

// ProcessLaunchError relay 进程未能启动
type ProcessLaunchError struct {
	Path string
	Err  error
}

func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *ProcessLaunchError) Unwrap() error { return e.Err }

// UnexpectedExitError relay 非正常退出，Status 中带有输出尾部
type UnexpectedExitError struct {
	Pid    int
	Status ExitStatus
}

func (e *UnexpectedExitError) Error() string {
	msg := fmt.Sprintf("relay (pid %d) %s", e.Pid, e.Status)
	if tail := e.Status.TailString(); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *UnexpectedExitError) Unwrap() error { return e.Status.Err }
