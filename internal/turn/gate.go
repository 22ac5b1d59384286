package turn

import "sync"

// Gate 回合门
// 关门期间上游不再产出新的语音段，回合进行中采集到的语音直接丢弃
// 开门与关门都是幂等操作，不做嵌套计数
type Gate struct {
	mu     sync.Mutex
	closed bool
}

func NewGate() *Gate {
	return &Gate{}
}

// TryClose 尝试关门
// @return bool: 关门成功返回true；门已关闭时返回false，调用方应丢弃本次输入
func (g *Gate) TryClose() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}

// Close 关门，重复关门为no-op
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// Open 开门，重复开门为no-op
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = false
}

func (g *Gate) IsClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
