package control

import (
	"fmt"
	"net"
)

// Reporter 把状态报文发回控制端
type Reporter interface {
	Report(to net.IP, sev Severity, msg string) error
}

// UDPReporter 通过给定 socket 发送到 <ip>:Port
type UDPReporter struct {
	Conn *net.UDPConn
	Port int
}

func NewUDPReporter(conn *net.UDPConn, port int) *UDPReporter {
	return &UDPReporter{Conn: conn, Port: port}
}

func (r *UDPReporter) Report(to net.IP, sev Severity, msg string) error {
	addr := &net.UDPAddr{IP: to, Port: r.Port}
	if _, err := r.Conn.WriteToUDP(FormatReport(sev, msg), addr); err != nil {
		return fmt.Errorf("send report to %s: %w", addr, err)
	}
	return nil
}
