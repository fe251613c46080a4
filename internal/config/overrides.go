package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Overrides 是命令行对连接表的按位置覆盖，逗号分隔，空串表示不覆盖
type Overrides struct {
	SerialPorts string
	TargetPorts string
	ListenPorts string
}

// Apply 第 i 项覆盖第 i 条连接；列表比连接表长时按默认值追加新连接
func (o Overrides) Apply(r *RelayConfig) error {
	devices := splitList(o.SerialPorts)
	targets, err := splitPorts("targetPort", o.TargetPorts)
	if err != nil {
		return err
	}
	listens, err := splitPorts("listenPort", o.ListenPorts)
	if err != nil {
		return err
	}

	n := max(len(devices), len(targets), len(listens))
	for len(r.Connections) < n {
		r.Connections = append(r.Connections, Connection{})
	}
	for i := range r.Connections {
		c := &r.Connections[i]
		if i < len(devices) {
			c.Device = devices[i]
		}
		if i < len(targets) {
			c.TargetPort = targets[i]
		}
		if i < len(listens) {
			c.ListenPort = listens[i]
		}
	}
	f := File{Relay: *r}
	f.applyDefaults()
	*r = f.Relay
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func splitPorts(field, s string) ([]int, error) {
	parts := splitList(s)
	ports := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, invalid("", field, "bad port %q", p)
		}
		ports = append(ports, n)
	}
	return ports, nil
}

// String 便于日志输出
func (o Overrides) String() string {
	return fmt.Sprintf("serial=%q target=%q listen=%q", o.SerialPorts, o.TargetPorts, o.ListenPorts)
}
