package serial

import (
	"errors"
	"fmt"
	"io"

	aliasserial "github.com/tarm/serial"
)

// RS232Port 基于 github.com/tarm/serial。
// tarm 在 posix 上没有真正的非阻塞读，读超时取最小单位 100ms，
// 超时读到 0 字节时 os.File 返回 io.EOF，这里折算成 0, nil。
type RS232Port struct {
	cfg  Config
	port *aliasserial.Port
}

// NewTarmPort 构造 RS232Port
func NewTarmPort(cfg Config) Port {
	return &RS232Port{cfg: cfg}
}

// Open 打开并配置串口
func (r *RS232Port) Open() error {
	sc := &aliasserial.Config{
		Name:        r.cfg.Device,
		Baud:        r.cfg.Framing.BaudRate,
		ReadTimeout: tarmPollTimeout,
		Size:        byte(r.cfg.Framing.DataBits),
		Parity:      aliasserial.Parity(r.cfg.Framing.Parity),
		StopBits:    aliasserial.StopBits(r.cfg.Framing.StopBits),
	}
	p, err := aliasserial.OpenPort(sc)
	if err != nil {
		if errors.Is(err, aliasserial.ErrBadSize) || errors.Is(err, aliasserial.ErrBadParity) ||
			errors.Is(err, aliasserial.ErrBadStopBits) {
			err = fmt.Errorf("%w: %v", ErrFraming, err)
		}
		return fmt.Errorf("open serial %s failed: %w", r.cfg.Device, err)
	}
	r.port = p
	return nil
}

// Close 关闭串口
func (r *RS232Port) Close() error {
	if r.port != nil {
		return r.port.Close()
	}
	return nil
}

func (r *RS232Port) Read(p []byte) (int, error) {
	n, err := r.port.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (r *RS232Port) Write(p []byte) (int, error) {
	n, err := r.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write failed: %w", err)
	}
	return n, nil
}

// Name 返回逻辑名称
func (r *RS232Port) Name() string {
	return r.cfg.Name
}
