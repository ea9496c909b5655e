package memory

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultKnowledgePerCategory = 50

// KnowledgeEntry 一条知识记录
type KnowledgeEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Payload   string    `json:"payload"`

	seq int
}

type KnowledgeStoreConfig struct {
	// PerCategory 每个分类保留的最大条目数，0 表示使用默认值 50
	PerCategory int

	// Now 用于测试，默认 time.Now
	Now func() time.Time
}

// KnowledgeStore 单个智能体的知识日志。
// 每个分类是一个环形缓冲区，超过上限时淘汰最旧的条目。
type KnowledgeStore struct {
	mu         sync.RWMutex
	categories map[string][]KnowledgeEntry
	seq        int

	perCategory int
	now         func() time.Time
}

func NewKnowledgeStore(config KnowledgeStoreConfig) *KnowledgeStore {
	perCategory := config.PerCategory
	if perCategory <= 0 {
		perCategory = defaultKnowledgePerCategory
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &KnowledgeStore{
		categories:  make(map[string][]KnowledgeEntry),
		perCategory: perCategory,
		now:         now,
	}
}

// Add 追加一条知识
func (s *KnowledgeStore) Add(category, payload string) KnowledgeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry := KnowledgeEntry{Timestamp: s.now(), Category: category, Payload: payload, seq: s.seq}
	entries := append(s.categories[category], entry)
	if over := len(entries) - s.perCategory; over > 0 {
		entries = append([]KnowledgeEntry(nil), entries[over:]...)
	}
	s.categories[category] = entries
	return entry
}

// Entries 返回某分类的条目，按插入顺序
func (s *KnowledgeStore) Entries(category string) []KnowledgeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]KnowledgeEntry(nil), s.categories[category]...)
}

// Search 大小写不敏感的子串搜索，命中 payload 或分类名均可。
// 结果按写入顺序从新到旧，limit <= 0 表示不限。
func (s *KnowledgeStore) Search(query string, limit int) []KnowledgeEntry {
	return s.SearchAny([]string{query}, limit)
}

// SearchAny 命中任一查询词即返回，每条记录最多出现一次
func (s *KnowledgeStore) SearchAny(queries []string, limit int) []KnowledgeEntry {
	terms := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
			terms = append(terms, q)
		}
	}
	if len(terms) == 0 {
		return nil
	}

	s.mu.RLock()
	var hits []KnowledgeEntry
	for category, entries := range s.categories {
		categoryHit := containsAnyTerm(strings.ToLower(category), terms)
		for _, e := range entries {
			if categoryHit || containsAnyTerm(strings.ToLower(e.Payload), terms) {
				hits = append(hits, e)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].seq > hits[j].seq })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func containsAnyTerm(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Len 所有分类的条目总数
func (s *KnowledgeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entries := range s.categories {
		n += len(entries)
	}
	return n
}

// Categories 已有的分类名，排序后返回
func (s *KnowledgeStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.categories))
	for c := range s.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
