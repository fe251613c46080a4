// Package control 实现 supervisor 与控制端之间的 UDP 文本协议：
// 入站 "<ip> <command>"，出站 "<SEVERITY>: <message>"
package control

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
)

type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityError Severity = "ERROR"
)

var ErrMalformed = errors.New("malformed control packet")

// Packet 是一条入站控制报文
type Packet struct {
	SenderIP net.IP
	Command  Command
}

func (p Packet) String() string {
	return p.SenderIP.String() + " " + string(p.Command)
}

// ParseCommand 解析 "<ip> <command>"：两个以单个空格分隔的字段，
// ip 必须合法，command 只能是 start/stop
func ParseCommand(data []byte) (Packet, error) {
	s := strings.TrimRight(string(data), "\r\n\x00")
	fields := strings.Split(s, " ")
	if len(fields) != 2 {
		return Packet{}, fmt.Errorf("%w: want \"<ip> <command>\", got %q", ErrMalformed, s)
	}
	ip := net.ParseIP(fields[0])
	if ip == nil {
		return Packet{}, fmt.Errorf("%w: bad sender ip %q", ErrMalformed, fields[0])
	}
	switch cmd := Command(fields[1]); cmd {
	case CommandStart, CommandStop:
		return Packet{SenderIP: ip, Command: cmd}, nil
	default:
		return Packet{}, fmt.Errorf("%w: unknown command %q", ErrMalformed, fields[1])
	}
}

// FormatCommand 构造入站报文，供控制端使用
func FormatCommand(ip net.IP, cmd Command) []byte {
	return []byte(Packet{SenderIP: ip, Command: cmd}.String())
}

// Report 是一条出站状态报文
type Report struct {
	Severity Severity
	Message  string
}

func (r Report) String() string {
	return string(r.Severity) + ": " + r.Message
}

// FormatReport 构造出站报文
func FormatReport(sev Severity, msg string) []byte {
	return []byte(Report{Severity: sev, Message: msg}.String())
}

// ParseReport 解析 "<SEVERITY>: <message>"
func ParseReport(data []byte) (Report, error) {
	s := string(data)
	sev, msg, ok := strings.Cut(s, ": ")
	if !ok {
		return Report{}, fmt.Errorf("%w: want \"<SEVERITY>: <message>\", got %q", ErrMalformed, s)
	}
	switch Severity(sev) {
	case SeverityInfo, SeverityError:
		return Report{Severity: Severity(sev), Message: msg}, nil
	default:
		return Report{}, fmt.Errorf("%w: unknown severity %q", ErrMalformed, sev)
	}
}
