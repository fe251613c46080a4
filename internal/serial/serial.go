// internal/serial/serial.go

package serial

import (
	"errors"
	"fmt"
	"time"
)

// ErrFraming 表示后端不支持该帧参数组合
var ErrFraming = errors.New("unsupported serial framing")

// Port 是整个 serial 包对外暴露的通用串口接口
type Port interface {
	Open() error
	Close() error
	// Read 不阻塞等待：当前无数据时返回 0, nil，最多读 len(p) 字节
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Name() string
}

// Config 描述一个要打开的串口
type Config struct {
	Name    string // 逻辑名称
	Device  string // 串口设备节点
	Framing Framing
	Backend string // bugst/tarm
	DEPin   int    // RS-485 DE/RE GPIO，0 表示不用
}

const (
	BackendBugst = "bugst"
	BackendTarm  = "tarm"
)

// tarm 在 posix 上的读超时以 100ms 为单位
const tarmPollTimeout = 100 * time.Millisecond

// NewPort 根据配置创建对应的串口实现，帧参数先行校验
func NewPort(cfg Config) (Port, error) {
	if err := cfg.Framing.Validate(); err != nil {
		return nil, err
	}
	var p Port
	switch cfg.Backend {
	case "", BackendBugst:
		p = NewBugstPort(cfg)
	case BackendTarm:
		p = NewTarmPort(cfg)
	default:
		return nil, fmt.Errorf("unknown serial backend %s", cfg.Backend)
	}
	if cfg.DEPin > 0 {
		p = NewRS485Port(p, cfg.DEPin, cfg.Framing.BaudRate)
	}
	return p, nil
}
