package serial

import (
	"fmt"
	"strings"
)

// Parity 校验方式
type Parity byte

const (
	ParityNone  Parity = 'N'
	ParityOdd   Parity = 'O'
	ParityEven  Parity = 'E'
	ParityMark  Parity = 'M'
	ParitySpace Parity = 'S'
)

// StopBits 停止位
type StopBits byte

const (
	Stop1     StopBits = 1
	Stop1Half StopBits = 15
	Stop2     StopBits = 2
)

// Framing 是串口线路上的编码参数
type Framing struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// ParseParity 取首字母判断（N/E/O/M/S），与配置文件写法无关大小写
func ParseParity(s string) (Parity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ParityNone, nil
	}
	switch p := Parity(strings.ToUpper(s)[0]); p {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
		return p, nil
	}
	return 0, fmt.Errorf("%w: unknown parity %q", ErrFraming, s)
}

// ParseStopBits 接受 1、1.5、2
func ParseStopBits(v float64) (StopBits, error) {
	switch v {
	case 1:
		return Stop1, nil
	case 1.5:
		return Stop1Half, nil
	case 2:
		return Stop2, nil
	}
	return 0, fmt.Errorf("%w: unknown stop bits %v", ErrFraming, v)
}

// Validate 检查帧参数组合。
// UART 只在 5 数据位时支持 1.5 停止位，5 数据位也不支持 2 停止位。
func (f Framing) Validate() error {
	if f.BaudRate <= 0 {
		return fmt.Errorf("%w: baud rate %d", ErrFraming, f.BaudRate)
	}
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d", ErrFraming, f.DataBits)
	}
	switch f.Parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
	default:
		return fmt.Errorf("%w: parity %q", ErrFraming, rune(f.Parity))
	}
	switch f.StopBits {
	case Stop1:
	case Stop1Half:
		if f.DataBits != 5 {
			return fmt.Errorf("%w: 1.5 stop bits need 5 data bits, got %d", ErrFraming, f.DataBits)
		}
	case Stop2:
		if f.DataBits == 5 {
			return fmt.Errorf("%w: 2 stop bits with 5 data bits", ErrFraming)
		}
	default:
		return fmt.Errorf("%w: stop bits %d", ErrFraming, f.StopBits)
	}
	return nil
}

func (f Framing) String() string {
	stop := "1"
	switch f.StopBits {
	case Stop1Half:
		stop = "1.5"
	case Stop2:
		stop = "2"
	}
	return fmt.Sprintf("%d %d%c%s", f.BaudRate, f.DataBits, rune(f.Parity), stop)
}
