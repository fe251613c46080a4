// Package serialtest 提供内存串口，供 relay 等包的测试使用
package serialtest

import (
	"bytes"
	"sync"
)

// Fake 实现 serial.Port：Inject 的数据可被 Read 取走，Write 的数据按次记录
type Fake struct {
	mu       sync.Mutex
	name     string
	pending  bytes.Buffer
	writes   [][]byte
	opened   bool
	closed   bool
	reads    int
	OpenErr  error
	ReadErr  error
	WriteErr error
}

func NewFake(name string) *Fake {
	return &Fake{name: name}
}

func (f *Fake) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.opened = true
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fake) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	if f.pending.Len() == 0 {
		return 0, nil
	}
	return f.pending.Read(p)
}

func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *Fake) Name() string { return f.name }

// Inject 模拟设备送来的字节
func (f *Fake) Inject(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Write(b)
}

// SetReadErr 之后的 Read 都返回 err
func (f *Fake) SetReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadErr = err
}

// Writes 返回每次 Write 的拷贝
func (f *Fake) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	for i, w := range f.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Written 返回所有写入字节的拼接
func (f *Fake) Written() []byte {
	return bytes.Join(f.Writes(), nil)
}

func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

func (f *Fake) Opened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reads 返回 Read 被调用的次数
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
