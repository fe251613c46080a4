package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ConfigurationError 表示配置缺失或取值非法，在任何 I/O 之前返回
type ConfigurationError struct {
	Connection string
	Field      string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Connection != "" {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Connection, e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func invalid(conn, field, format string, args ...any) error {
	return &ConfigurationError{Connection: conn, Field: field, Err: fmt.Errorf(format, args...)}
}

// ChunkLimit 解析 BufferSize，0 表示不限
func (c Connection) ChunkLimit() (int, error) {
	s := strings.TrimSpace(c.BufferSize)
	if s == "" || strings.EqualFold(s, "default") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, invalid(c.Name, "bufferSize", "want a positive integer or \"default\", got %q", c.BufferSize)
	}
	return n, nil
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

// Validate 只检查 relay 级别的字段。
// 单条连接的问题在建立该连接时报告，不影响其它连接。
func (r *RelayConfig) Validate() error {
	if r.TargetIP == "" {
		return invalid("", "TargetIP", "target ip is required")
	}
	if net.ParseIP(r.TargetIP) == nil {
		return invalid("", "TargetIP", "%q is not an IP address", r.TargetIP)
	}
	if r.Interval < 0 {
		return invalid("", "Interval", "must not be negative")
	}
	if r.RxTimeoutMs <= 0 {
		return invalid("", "RxTimeoutMs", "must be positive")
	}
	if len(r.Connections) == 0 {
		return invalid("", "Connections", "no connection configured")
	}
	return nil
}

// Validate 检查单条连接的必填字段
func (c Connection) Validate() error {
	if c.Device == "" {
		return invalid(c.Name, "device", "serial device is required")
	}
	if c.Baudrate <= 0 {
		return invalid(c.Name, "baudrate", "must be positive, got %d", c.Baudrate)
	}
	if _, err := c.ChunkLimit(); err != nil {
		return err
	}
	if modeHasTx(c.Mode) && !validPort(c.TargetPort) {
		return invalid(c.Name, "targetPort", "port %d out of range", c.TargetPort)
	}
	if modeHasRx(c.Mode) && !validPort(c.ListenPort) {
		return invalid(c.Name, "listenPort", "port %d out of range", c.ListenPort)
	}
	if !modeHasTx(c.Mode) && !modeHasRx(c.Mode) {
		return invalid(c.Name, "mode", "unknown mode %q", c.Mode)
	}
	return nil
}

// Validate 检查 supervisor 配置
func (s *SupervisorConfig) Validate() error {
	if !validPort(s.ControlPort) {
		return invalid("", "ControlPort", "port %d out of range", s.ControlPort)
	}
	if s.RelayPath == "" {
		return invalid("", "RelayPath", "relay executable is required")
	}
	if s.GracePeriodMs <= 0 {
		return invalid("", "GracePeriodMs", "must be positive")
	}
	if s.Elevate && s.SudoPasswordFile == "" {
		return invalid("", "SudoPasswordFile", "required when Elevate is set")
	}
	return nil
}

func modeHasTx(m string) bool {
	d, err := ParseDirection(m)
	return err == nil && d.HasTx()
}

func modeHasRx(m string) bool {
	d, err := ParseDirection(m)
	return err == nil && d.HasRx()
}
