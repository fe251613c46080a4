package relay

import "fmt"

// BindError 监听端口不可用
type BindError struct {
	Connection string
	Port       int
	Err        error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s: bind udp port %d: %v", e.Connection, e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// SerialIOError 串口打开或读写失败
type SerialIOError struct {
	Connection string
	Device     string
	Op         string
	Err        error
}

func (e *SerialIOError) Error() string {
	return fmt.Sprintf("%s: serial %s %s: %v", e.Connection, e.Op, e.Device, e.Err)
}

func (e *SerialIOError) Unwrap() error { return e.Err }

// SocketIOError UDP 收发失败
type SocketIOError struct {
	Connection string
	Op         string
	Err        error
}

func (e *SocketIOError) Error() string {
	return fmt.Sprintf("%s: udp %s: %v", e.Connection, e.Op, e.Err)
}

func (e *SocketIOError) Unwrap() error { return e.Err }
