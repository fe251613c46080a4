package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	DefaultControlPort   = 7000
	DefaultInterval      = 10
	DefaultRxTimeoutMs   = 1000
	DefaultGracePeriodMs = 2000
	DefaultSerialBackend = "bugst"
	DefaultPidFile       = "/tmp/uart-udp-relay.pid"
	DefaultMQTTTopic     = "uart-udp-relay/status"
)

// Default 返回填好默认值的配置
func Default() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// LoadConfig 从指定 YAML 文件加载配置并补全默认值，不做校验
func LoadConfig(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 反序列化 YAML
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Field: "yaml", Err: err}
	}
	f.applyDefaults()
	return &f, nil
}

func (f *File) applyDefaults() {
	r := &f.Relay
	if r.Interval == 0 {
		r.Interval = DefaultInterval
	}
	if r.RxTimeoutMs == 0 {
		r.RxTimeoutMs = DefaultRxTimeoutMs
	}
	if r.SerialBackend == "" {
		r.SerialBackend = DefaultSerialBackend
	}
	if r.PidFile == "" {
		r.PidFile = DefaultPidFile
	}
	for i := range r.Connections {
		c := &r.Connections[i]
		if c.Name == "" {
			c.Name = fmt.Sprintf("Connection%d", i+1)
		}
		if c.DataBits == 0 {
			c.DataBits = 8
		}
		if c.Parity == "" {
			c.Parity = "None"
		}
		if c.StopBits == 0 {
			c.StopBits = 1
		}
		if c.BufferSize == "" {
			c.BufferSize = "default"
		}
		if c.Mode == "" {
			c.Mode = "Tx/Rx"
		}
	}

	s := &f.Supervisor
	if s.ControlPort == 0 {
		s.ControlPort = DefaultControlPort
	}
	if s.GracePeriodMs == 0 {
		s.GracePeriodMs = DefaultGracePeriodMs
	}
	if s.MQTT.Topic == "" {
		s.MQTT.Topic = DefaultMQTTTopic
	}
}
