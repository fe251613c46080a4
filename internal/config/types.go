package config

// Connection 描述一条串口 <-> UDP 通道
type Connection struct {
	Name       string  `yaml:"name"`       // 逻辑名称（仅用于日志）
	Device     string  `yaml:"device"`     // 串口设备节点
	Baudrate   int     `yaml:"baudrate"`   // 波特率
	DataBits   int     `yaml:"dataBits"`   // 5/6/7/8
	Parity     string  `yaml:"parity"`     // None/Even/Odd/Mark/Space
	StopBits   float64 `yaml:"stopBits"`   // 1/1.5/2
	BufferSize string  `yaml:"bufferSize"` // 单次读取上限，"default" 表示不限
	Mode       string  `yaml:"mode"`       // Tx/Rx/Tx/Rx
	TargetPort int     `yaml:"targetPort"` // 串口数据发往的 UDP 端口
	ListenPort int     `yaml:"listenPort"` // 接收 UDP 数据的本地端口
	DEPin      int     `yaml:"dePin"`      // RS-485 DE/RE 控制 GPIO 编号，0 表示不用
}

// RelayConfig 是 relay 进程的配置
type RelayConfig struct {
	TargetIP      string       `yaml:"TargetIP"`
	Interval      int          `yaml:"Interval"`      // 串口轮询间隔（毫秒）
	RxTimeoutMs   int          `yaml:"RxTimeoutMs"`   // UDP 接收等待上限（毫秒）
	SerialBackend string       `yaml:"SerialBackend"` // bugst/tarm
	PidFile       string       `yaml:"PidFile"`
	LogFile       string       `yaml:"LogFile"`
	Connections   []Connection `yaml:"Connections"`
}

// MQTTConfig 状态镜像，Broker 为空时不启用
type MQTTConfig struct {
	Broker   string `yaml:"Broker"`
	ClientID string `yaml:"ClientID"`
	Username string `yaml:"Username"`
	Password string `yaml:"Password"`
	Topic    string `yaml:"Topic"`
}

// SupervisorConfig 是 supervisor 进程的配置
type SupervisorConfig struct {
	ControlPort      int        `yaml:"ControlPort"`
	RelayPath        string     `yaml:"RelayPath"`
	RelayArgs        []string   `yaml:"RelayArgs"`
	GracePeriodMs    int        `yaml:"GracePeriodMs"`
	Elevate          bool       `yaml:"Elevate"`          // 通过 sudo -S 启动 relay
	SudoPasswordFile string     `yaml:"SudoPasswordFile"` // 口令只经 stdin 传递
	LogFile          string     `yaml:"LogFile"`
	MQTT             MQTTConfig `yaml:"MQTT"`
}

// File 汇总了 Relay、Supervisor 两部分
type File struct {
	Relay      RelayConfig      `yaml:"Relay"`
	Supervisor SupervisorConfig `yaml:"Supervisor"`
}
