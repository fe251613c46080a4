package relay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/linjuya-lu/uart_udp_relay/internal/config"
)

// Counter 一个方向上的转发计数
type Counter struct {
	Datagrams uint64
	Bytes     uint64
}

// Stats 是一个简单的内存存储：连接名 → 方向 → Counter
type Stats struct {
	mu    sync.RWMutex
	store map[string]map[config.Direction]Counter
}

// NewStats 返回一个空的 Stats
func NewStats() *Stats {
	return &Stats{store: make(map[string]map[config.Direction]Counter)}
}

// Register 为连接预建条目，保证没有流量的连接也能查到
func (s *Stats) Register(conn string, dir config.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[conn]; !ok {
		s.store[conn] = make(map[config.Direction]Counter)
	}
	if dir.HasTx() {
		s.store[conn][config.DirectionTx] = s.store[conn][config.DirectionTx]
	}
	if dir.HasRx() {
		s.store[conn][config.DirectionRx] = s.store[conn][config.DirectionRx]
	}
}

// Add 记一次转发，dir 只取 Tx 或 Rx
func (s *Stats) Add(conn string, dir config.Direction, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[conn]; !ok {
		s.store[conn] = make(map[config.Direction]Counter)
	}
	c := s.store[conn][dir]
	c.Datagrams++
	c.Bytes += uint64(n)
	s.store[conn][dir] = c
}

// Get 获取指定连接某个方向的计数
func (s *Stats) Get(conn string, dir config.Direction) (Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirs, ok := s.store[conn]
	if !ok {
		return Counter{}, fmt.Errorf("connection %s not found", conn)
	}
	c, ok := dirs[dir]
	if !ok {
		return Counter{}, fmt.Errorf("connection %s has no %s direction", conn, dir)
	}
	return c, nil
}

// Connections 返回已登记的连接名（排序后）
func (s *Stats) Connections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.store))
	for n := range s.store {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
