package cache

import "sync/atomic"

// Stats 以原子计数器记录命中情况，供 Store 与 Sweeper 双端更新，
// 读路径无锁，适合高频并发查询。
type Stats struct {
	hits       atomic.Int64
	misses     atomic.Int64
	entries    atomic.Int64
	totalBytes atomic.Int64
}

// NewStats 返回全零计数器；hits/misses 不跨进程持久化。
func NewStats() *Stats {
	return &Stats{}
}

// Snapshot 是某一时刻的计数器只读副本。
type Snapshot struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Entries    int64 `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}

// Snapshot 返回当前计数器快照。各字段独立读取，允许彼此间轻微错位。
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Entries:    s.entries.Load(),
		TotalBytes: s.totalBytes.Load(),
	}
}

func (s *Stats) recordHit()  { s.hits.Add(1) }
func (s *Stats) recordMiss() { s.misses.Add(1) }

func (s *Stats) recordPut(sizeBytes int64) {
	s.entries.Add(1)
	s.totalBytes.Add(sizeBytes)
}

func (s *Stats) recordRemove(sizeBytes int64) {
	s.entries.Add(-1)
	s.totalBytes.Add(-sizeBytes)
}
