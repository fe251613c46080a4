package relay

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
)

// txLoop 串口 -> UDP：每个轮询周期把当前可读的字节作为一个数据报发出，
// 无论是否发送都等待一个周期
func (c *connection) txLoop(ctx context.Context) error {
	defer c.txSock.Close()
	c.logger.Info("Serial->UDP worker started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	size := c.chunkLimit
	if size <= 0 {
		size = maxTxDatagram
	}
	buf := make([]byte, size)

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := c.readAvailable(buf)
		if err != nil {
			err = &SerialIOError{Connection: c.name, Op: "read", Err: err}
			c.logger.Errorf("Serial->UDP worker stopped: %v", err)
			return err
		}
		if n > 0 {
			if _, err := c.txSock.WriteToUDP(buf[:n], c.target); err != nil {
				err = &SocketIOError{Connection: c.name, Op: "send", Err: err}
				c.logger.Errorf("Serial->UDP worker stopped: %v", err)
				return err
			}
			c.stats.Add(c.name, config.DirectionTx, n)
			c.logger.Debugf("Sent: %q", buf[:n])
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// readAvailable 有读取上限时只读一次；不限时一直读到串口没有数据或缓冲满
func (c *connection) readAvailable(buf []byte) (int, error) {
	if c.chunkLimit > 0 {
		return c.port.Read(buf)
	}
	total := 0
	for total < len(buf) {
		n, err := c.port.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

// rxLoop UDP -> 串口：带超时等待数据报，超时只用于检查取消
func (c *connection) rxLoop(ctx context.Context) error {
	defer c.rxSock.Close()
	c.logger.Info("UDP->Serial worker started")

	buf := make([]byte, MaxRxDatagram)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.rxSock.SetReadDeadline(time.Now().Add(c.rxTimeout)); err != nil {
			err = &SocketIOError{Connection: c.name, Op: "deadline", Err: err}
			c.logger.Errorf("UDP->Serial worker stopped: %v", err)
			return err
		}
		n, addr, err := c.rxSock.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			err = &SocketIOError{Connection: c.name, Op: "receive", Err: err}
			c.logger.Errorf("UDP->Serial worker stopped: %v", err)
			return err
		}
		if n == 0 {
			continue
		}
		if _, err := c.port.Write(buf[:n]); err != nil {
			err = &SerialIOError{Connection: c.name, Op: "write", Err: err}
			c.logger.Errorf("UDP->Serial worker stopped: %v", err)
			return err
		}
		c.stats.Add(c.name, config.DirectionRx, n)
		c.logger.Debugf("Received from %s: %q", addr, buf[:n])
	}
}
