package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ClientOptions 配置 MQTT 客户端行为
// Broker: tcp://host:port
// ClientID: 客户端标识，为空时自动生成
// Username/Password: 可选认证
// Topic: 状态事件发布的主题
type ClientOptions struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	Qos            byte
	Retain         bool
}

// Client 封装 Paho MQTT 客户端，把 supervisor 的状态事件以 JSON 发布到固定主题
type Client struct {
	inner paho.Client
	opts  ClientOptions
	mu    sync.Mutex
}

// ClientID 在前缀后追加一段 uuid，避免多个 supervisor 在 broker 上互踢
func ClientID(prefix string) string {
	if prefix == "" {
		prefix = "uart-udp-supervisor"
	}
	return prefix + "-" + uuid.NewString()[:8]
}

func (o *ClientOptions) setDefaults() {
	if o.ClientID == "" {
		o.ClientID = ClientID("")
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 30 * time.Second
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
}

// NewClient 创建一个新的 MQTT 客户端并连接到 Broker
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Topic == "" {
		return nil, fmt.Errorf("mqtt topic is required")
	}
	opts.setDefaults()
	p := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(opts.KeepAlive).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if opts.Username != "" {
		p.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		p.SetPassword(opts.Password)
	}
	c := &Client{opts: opts}
	c.inner = paho.NewClient(p)
	tok := c.inner.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout after %s", opts.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, err)
	}
	return c, nil
}

// Publish 把 v 序列化为 JSON 发布到配置的主题
func (c *Client) Publish(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := c.inner.Publish(c.opts.Topic, c.opts.Qos, c.opts.Retain, b)
	if !tok.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", c.opts.Topic)
	}
	return tok.Error()
}

// Disconnect 断开与 Broker 的连接
func (c *Client) Disconnect(quiesce uint) {
	c.inner.Disconnect(quiesce)
}
