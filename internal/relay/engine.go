package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
	"github.com/linjuya-lu/uart_udp_relay/internal/serial"
)

// Options 是一个 relay 实例内所有连接共享的参数
type Options struct {
	TargetIP     string
	PollInterval time.Duration
	RxTimeout    time.Duration
	Backend      string
	// OpenPort 为空时使用 serial.NewPort
	OpenPort func(serial.Config) (serial.Port, error)
}

// Engine 持有一个 relay 实例的全部连接和 worker，
// 所有 worker 共享同一个取消上下文
type Engine struct {
	opts   Options
	logger *zap.SugaredLogger
	stats  *Stats

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	conns   []*connection
	failed  []error
	started bool
}

func NewEngine(logger *zap.SugaredLogger, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.RxTimeout <= 0 {
		opts.RxTimeout = time.Duration(config.DefaultRxTimeoutMs) * time.Millisecond
	}
	if opts.OpenPort == nil {
		opts.OpenPort = serial.NewPort
	}
	return &Engine{
		opts:   opts,
		logger: logger,
		stats:  NewStats(),
		done:   make(chan struct{}),
	}
}

// Start 逐条建立连接并启动 worker。
// 某条连接失败只记录日志并跳过该连接，其余连接照常运行；
// 返回成功启动的连接数以及所有失败原因的合并错误。
func (e *Engine) Start(ctx context.Context, conns []config.Connection) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return 0, errors.New("relay engine already started")
	}
	e.started = true

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	var errs []error
	for _, cc := range conns {
		s, err := parsePlan(cc, e.opts.TargetIP, e.opts.Backend)
		if err != nil {
			e.logger.Errorf("Skipping connection %s: %v", cc.Name, err)
			errs = append(errs, err)
			continue
		}
		c, err := e.open(s)
		if err != nil {
			e.logger.Errorf("Skipping connection %s: %v", cc.Name, err)
			errs = append(errs, err)
			continue
		}
		e.stats.Register(c.name, c.direction)
		e.conns = append(e.conns, c)
		c.logger.Infof("Connection started: %s %s %s", cc.Device, s.serial.Framing, c.describe())

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := c.run(runCtx); err != nil {
				e.mu.Lock()
				e.failed = append(e.failed, err)
				e.mu.Unlock()
			}
		}()
	}
	go func() {
		e.wg.Wait()
		close(e.done)
	}()
	return len(e.conns), errors.Join(errs...)
}

// Stop 取消所有 worker 并等待它们退出；worker 各自关闭自己的 socket，
// 串口在所属连接的最后一个 worker 退出后关闭
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Wait 阻塞直到所有 worker 退出（取消或全部因错误退出）
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Done 在 Start 之后、所有 worker 退出时关闭
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err 返回运行中因 I/O 错误退出的 worker 的错误
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return errors.Join(e.failed...)
}

func (e *Engine) Stats() *Stats {
	return e.stats
}

// ListenPort 返回指定连接 Rx 方向实际绑定的端口，未绑定时返回 0
func (e *Engine) ListenPort(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.conns {
		if c.name == name {
			if a := c.listenAddr(); a != nil {
				return a.Port
			}
		}
	}
	return 0
}

// LogStats 把每条连接的转发计数写入日志
func (e *Engine) LogStats() {
	for _, name := range e.stats.Connections() {
		for _, dir := range []config.Direction{config.DirectionTx, config.DirectionRx} {
			c, err := e.stats.Get(name, dir)
			if err != nil {
				continue
			}
			e.logger.Infow("Relay statistics",
				"connection", name,
				"direction", dir.String(),
				"datagrams", c.Datagrams,
				"bytes", c.Bytes)
		}
	}
}
