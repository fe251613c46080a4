package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
	"github.com/linjuya-lu/uart_udp_relay/internal/serial"
)

const (
	// MaxRxDatagram 是 UDP -> 串口方向的接收缓冲，超出部分被截断
	MaxRxDatagram = 1024
	// maxTxDatagram 是不限读取长度时单个数据报的上限（IPv4 UDP 负载上限）
	maxTxDatagram = 65507
)

// connection 是一条已解析、已打开的串口 <-> UDP 通道
type connection struct {
	name       string
	direction  config.Direction
	chunkLimit int
	port       serial.Port
	target     *net.UDPAddr
	txSock     *net.UDPConn
	rxSock     *net.UDPConn

	interval  time.Duration
	rxTimeout time.Duration
	stats     *Stats
	logger    *zap.SugaredLogger
}

// plan 是校验后的连接参数，任何 I/O 之前得到
type plan struct {
	cfg        config.Connection
	direction  config.Direction
	chunkLimit int
	serial     serial.Config
	target     *net.UDPAddr
}

func parsePlan(c config.Connection, targetIP, backend string) (*plan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dir, err := config.ParseDirection(c.Mode)
	if err != nil {
		return nil, &config.ConfigurationError{Connection: c.Name, Field: "mode", Err: err}
	}
	limit, err := c.ChunkLimit()
	if err != nil {
		return nil, err
	}
	parity, err := serial.ParseParity(c.Parity)
	if err != nil {
		return nil, &config.ConfigurationError{Connection: c.Name, Field: "parity", Err: err}
	}
	stop, err := serial.ParseStopBits(c.StopBits)
	if err != nil {
		return nil, &config.ConfigurationError{Connection: c.Name, Field: "stopBits", Err: err}
	}
	framing := serial.Framing{BaudRate: c.Baudrate, DataBits: c.DataBits, Parity: parity, StopBits: stop}
	if err := framing.Validate(); err != nil {
		return nil, &config.ConfigurationError{Connection: c.Name, Field: "framing", Err: err}
	}

	s := &plan{
		cfg:        c,
		direction:  dir,
		chunkLimit: limit,
		serial: serial.Config{
			Name:    c.Name,
			Device:  c.Device,
			Framing: framing,
			Backend: backend,
			DEPin:   c.DEPin,
		},
	}
	if dir.HasTx() {
		ip := net.ParseIP(targetIP)
		if ip == nil {
			return nil, &config.ConfigurationError{Connection: c.Name, Field: "targetIP", Err: fmt.Errorf("%q is not an IP address", targetIP)}
		}
		s.target = &net.UDPAddr{IP: ip, Port: c.TargetPort}
	}
	return s, nil
}

// open 依次打开串口、绑定 Rx 端口、创建 Tx socket，任一步失败都释放已占用的资源
func (e *Engine) open(s *plan) (*connection, error) {
	name := s.cfg.Name
	port, err := e.opts.OpenPort(s.serial)
	if err != nil {
		if errors.Is(err, serial.ErrFraming) {
			return nil, &config.ConfigurationError{Connection: name, Field: "framing", Err: err}
		}
		return nil, &SerialIOError{Connection: name, Device: s.cfg.Device, Op: "open", Err: err}
	}
	if err := port.Open(); err != nil {
		if errors.Is(err, serial.ErrFraming) {
			return nil, &config.ConfigurationError{Connection: name, Field: "framing", Err: err}
		}
		return nil, &SerialIOError{Connection: name, Device: s.cfg.Device, Op: "open", Err: err}
	}

	c := &connection{
		name:       name,
		direction:  s.direction,
		chunkLimit: s.chunkLimit,
		port:       port,
		target:     s.target,
		interval:   e.opts.PollInterval,
		rxTimeout:  e.opts.RxTimeout,
		stats:      e.stats,
		logger:     e.logger.With("connection", name),
	}

	if s.direction.HasRx() {
		sock, err := net.ListenUDP("udp", &net.UDPAddr{Port: s.cfg.ListenPort})
		if err != nil {
			port.Close()
			return nil, &BindError{Connection: name, Port: s.cfg.ListenPort, Err: err}
		}
		c.rxSock = sock
	}
	if s.direction.HasTx() {
		// 不 connect：目标未监听时的 ICMP 不可达不会让后续发送报错
		sock, err := net.ListenUDP("udp", nil)
		if err != nil {
			if c.rxSock != nil {
				c.rxSock.Close()
			}
			port.Close()
			return nil, &SocketIOError{Connection: name, Op: "socket", Err: err}
		}
		c.txSock = sock
	}
	return c, nil
}

// run 启动该连接的方向 worker，全部退出后关闭串口，返回第一个 worker 错误
func (c *connection) run(ctx context.Context) error {
	var g errgroup.Group
	if c.txSock != nil {
		g.Go(func() error { return c.txLoop(ctx) })
	}
	if c.rxSock != nil {
		g.Go(func() error { return c.rxLoop(ctx) })
	}
	// worker 互不取消：一个方向出错不影响另一个方向
	werr := g.Wait()
	if err := c.port.Close(); err != nil {
		c.logger.Warnf("Closing serial port: %v", err)
	}
	if werr != nil {
		c.logger.Errorf("Connection stopped after worker failure: %v", werr)
		return werr
	}
	c.logger.Info("Connection stopped")
	return nil
}

// listenAddr 返回 Rx socket 实际绑定的地址
func (c *connection) listenAddr() *net.UDPAddr {
	if c.rxSock == nil {
		return nil
	}
	return c.rxSock.LocalAddr().(*net.UDPAddr)
}

func (c *connection) describe() string {
	s := c.direction.String()
	if c.target != nil {
		s += " -> " + net.JoinHostPort(c.target.IP.String(), strconv.Itoa(c.target.Port))
	}
	if a := c.listenAddr(); a != nil {
		s += fmt.Sprintf(" <- :%d", a.Port)
	}
	return s
}
