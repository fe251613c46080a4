package serial

import (
	"errors"
	"fmt"

	bugst "go.bug.st/serial"
)

// UARTPort 基于 go.bug.st/serial，读超时设为 0，Read 只取当前已到达的字节
type UARTPort struct {
	cfg    Config
	handle bugst.Port
}

func NewBugstPort(cfg Config) Port {
	return &UARTPort{cfg: cfg}
}

func (u *UARTPort) Open() error {
	mode := &bugst.Mode{
		BaudRate: u.cfg.Framing.BaudRate,
		DataBits: u.cfg.Framing.DataBits,
		Parity:   bugstParity(u.cfg.Framing.Parity),
		StopBits: bugstStopBits(u.cfg.Framing.StopBits),
	}
	p, err := bugst.Open(u.cfg.Device, mode)
	if err != nil {
		return fmt.Errorf("open UART %s failed: %w", u.cfg.Device, bugstError(err))
	}
	if err := p.SetReadTimeout(0); err != nil {
		p.Close()
		return fmt.Errorf("set read timeout on %s: %w", u.cfg.Device, err)
	}
	u.handle = p
	return nil
}

func (u *UARTPort) Close() error {
	if u.handle != nil {
		return u.handle.Close()
	}
	return nil
}

func (u *UARTPort) Read(p []byte) (int, error) {
	return u.handle.Read(p)
}

func (u *UARTPort) Write(p []byte) (int, error) {
	n, err := u.handle.Write(p)
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	return n, nil
}

// Name 返回逻辑名称
func (u *UARTPort) Name() string {
	return u.cfg.Name
}

func bugstParity(p Parity) bugst.Parity {
	switch p {
	case ParityOdd:
		return bugst.OddParity
	case ParityEven:
		return bugst.EvenParity
	case ParityMark:
		return bugst.MarkParity
	case ParitySpace:
		return bugst.SpaceParity
	default:
		return bugst.NoParity
	}
}

func bugstStopBits(s StopBits) bugst.StopBits {
	switch s {
	case Stop1Half:
		return bugst.OnePointFiveStopBits
	case Stop2:
		return bugst.TwoStopBits
	default:
		return bugst.OneStopBit
	}
}

// bugstError 把驱动拒绝的帧参数归到 ErrFraming
func bugstError(err error) error {
	var pe *bugst.PortError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code() {
	case bugst.InvalidSpeed, bugst.InvalidDataBits, bugst.InvalidParity, bugst.InvalidStopBits:
		return fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return err
}
