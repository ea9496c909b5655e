package conversation

import (
	"sync"
)

// sessionState 单个会话的可变状态。
// turn 串行化同一会话上的 SendMessage/Respond；mu 保护 data 的读写。
type sessionState struct {
	turn sync.Mutex
	mu   sync.RWMutex
	data *Session
}

func (st *sessionState) snapshot() *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.data.Clone()
}

// update 在写锁内修改会话
func (st *sessionState) update(fn func(s *Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st.data)
}

// view 在读锁内读取会话
func (st *sessionState) view(fn func(s *Session)) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	fn(st.data)
}

// Store 会话注册表，按创建顺序列出
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*sessionState
	order []string
}

// NewStore 创建空注册表
func NewStore() *Store {
	return &Store{byID: make(map[string]*sessionState)}
}

// Put 注册会话。已存在的 id 会被替换并保持原有顺序。
func (s *Store) Put(session *Session) {
	s.put(&sessionState{data: session.Clone()})
}

func (s *Store) put(st *sessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := st.data.ID
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = st
}

// Get 返回会话快照
func (s *Store) Get(id string) (*Session, bool) {
	st, ok := s.state(id)
	if !ok {
		return nil, false
	}
	return st.snapshot(), true
}

func (s *Store) state(id string) (*sessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[id]
	return st, ok
}

// Delete 删除会话，返回是否存在
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List 按创建顺序返回所有会话快照
func (s *Store) List() []*Session {
	s.mu.RLock()
	states := make([]*sessionState, 0, len(s.order))
	for _, id := range s.order {
		states = append(states, s.byID[id])
	}
	s.mu.RUnlock()

	out := make([]*Session, 0, len(states))
	for _, st := range states {
		out = append(out, st.snapshot())
	}
	return out
}

// Len 会话数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear 清空注册表
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*sessionState)
	s.order = nil
}
