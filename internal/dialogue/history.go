package dialogue

import (
	"sync"

	"miko/internal/schema"
)

// HistoryStore 按会话键保存历史消息
// 历史只增不减，生命周期与进程一致，不做持久化
type HistoryStore struct {
	mu        sync.RWMutex
	histories map[string][]schema.Message
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		histories: make(map[string][]schema.Message),
	}
}

// Append 追加消息到指定会话
func (s *HistoryStore) Append(sessionKey string, messages ...schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionKey] = append(s.histories[sessionKey], messages...)
}

// Get 获取指定会话的全部历史消息副本
func (s *HistoryStore) Get(sessionKey string) []schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[sessionKey]
	out := make([]schema.Message, len(history))
	copy(out, history)
	return out
}

// Len 指定会话的历史消息条数
func (s *HistoryStore) Len(sessionKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories[sessionKey])
}
