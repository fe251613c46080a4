package config

import (
	"github.com/united-manufacturing-hub/umh-utils/env"
)

// ApplyEnv 用环境变量覆盖文件中的配置，未设置的变量保持原值
func (f *File) ApplyEnv() error {
	var err error
	if f.Relay.TargetIP, err = env.GetAsString("RELAY_TARGET_IP", false, f.Relay.TargetIP); err != nil {
		return err
	}
	if f.Relay.Interval, err = env.GetAsInt("RELAY_INTERVAL_MS", false, f.Relay.Interval); err != nil {
		return err
	}
	if f.Relay.SerialBackend, err = env.GetAsString("RELAY_SERIAL_BACKEND", false, f.Relay.SerialBackend); err != nil {
		return err
	}
	if f.Supervisor.ControlPort, err = env.GetAsInt("SUPERVISOR_CONTROL_PORT", false, f.Supervisor.ControlPort); err != nil {
		return err
	}
	if f.Supervisor.RelayPath, err = env.GetAsString("SUPERVISOR_RELAY_PATH", false, f.Supervisor.RelayPath); err != nil {
		return err
	}
	if f.Supervisor.MQTT.Broker, err = env.GetAsString("MQTT_BROKER", false, f.Supervisor.MQTT.Broker); err != nil {
		return err
	}
	return nil
}
