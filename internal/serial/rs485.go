package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// gpioRoot 是 sysfs GPIO 根目录，测试时替换
var gpioRoot = "/sys/class/gpio"

// RS485Port 在任意 Port 外面加一层 RS-485 半双工 DE/RE 控制：
// 写之前拉高 DE，写完等比特发完再拉低回到接收
type RS485Port struct {
	Port
	dePin    int
	baudrate int
	gpioFD   *os.File
}

// NewRS485Port 包装 inner，dePin 为 DE/RE 控制 GPIO 编号
func NewRS485Port(inner Port, dePin, baudrate int) Port {
	return &RS485Port{Port: inner, dePin: dePin, baudrate: baudrate}
}

// Open 导出 GPIO 并打开串口
func (r *RS485Port) Open() error {
	if err := exportGPIO(r.dePin); err != nil {
		return fmt.Errorf("export GPIO %d failed: %w", r.dePin, err)
	}
	if err := setGPIODirection(r.dePin, "out"); err != nil {
		return fmt.Errorf("set GPIO %d direction: %w", r.dePin, err)
	}
	f, err := openGPIOValue(r.dePin)
	if err != nil {
		return fmt.Errorf("open GPIO %d value: %w", r.dePin, err)
	}
	// 默认低电平 (接收)
	if _, err := f.WriteString("0"); err != nil {
		f.Close()
		return fmt.Errorf("init GPIO %d low: %w", r.dePin, err)
	}
	r.gpioFD = f

	if err := r.Port.Open(); err != nil {
		r.gpioFD.Close()
		r.gpioFD = nil
		return err
	}
	return nil
}

// Close 关闭串口和 GPIO
func (r *RS485Port) Close() error {
	firstErr := r.Port.Close()
	if r.gpioFD != nil {
		if err := r.gpioFD.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.gpioFD = nil
	}
	return firstErr
}

// Write 切到发送 → 写 → 等待发完 → 切回接收
func (r *RS485Port) Write(p []byte) (int, error) {
	if _, err := r.gpioFD.WriteString("1"); err != nil {
		return 0, fmt.Errorf("GPIO DE high failed: %w", err)
	}
	n, err := r.Port.Write(p)
	if err != nil {
		r.gpioFD.WriteString("0")
		return n, err
	}
	// 每字节按 10 bit 计
	time.Sleep(time.Duration(n*10) * time.Second / time.Duration(r.baudrate))

	if _, err := r.gpioFD.WriteString("0"); err != nil {
		return n, fmt.Errorf("GPIO DE low failed: %w", err)
	}
	return n, nil
}

// -------- GPIO 辅助函数 --------
func exportGPIO(pin int) error {
	f, err := os.OpenFile(filepath.Join(gpioRoot, "export"), os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, _ = f.WriteString(fmt.Sprint(pin)) // 若已导出则忽略错误
	// 等待 sysfs 节点生成
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(gpioPath(pin, "direction")); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("gpio%d did not appear", pin)
}

func setGPIODirection(pin int, dir string) error {
	f, err := os.OpenFile(gpioPath(pin, "direction"), os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(dir)
	return err
}

func openGPIOValue(pin int) (*os.File, error) {
	return os.OpenFile(gpioPath(pin, "value"), os.O_RDWR, 0)
}

func gpioPath(pin int, leaf string) string {
	return filepath.Join(gpioRoot, fmt.Sprintf("gpio%d", pin), leaf)
}
