package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
// 构造时扫描既有条目，将 entries/totalBytes 计数与磁盘对齐。
func NewStore(basePath string, stats *Stats) (Store, error) {
	if basePath == "" {
		return nil, errors.New("cache path required")
	}
	if stats == nil {
		return nil, errors.New("stats tracker required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache path: %w", err)
	}

	s := &fileStore{
		basePath: abs,
		stats:    stats,
		now:      time.Now,
		locks:    make(map[string]*entryLock),
	}
	if err := s.seedStats(); err != nil {
		return nil, fmt.Errorf("scan cache path: %w", err)
	}
	return s, nil
}

// fileStore 通过 entryLock 避免同一 key 并发写入，同时复用 basePath。
type fileStore struct {
	basePath string
	stats    *Stats
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

const (
	bodySuffix = ".body"
	metaSuffix = ".meta"
)

func (s *fileStore) Get(ctx context.Context, key string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	unlock, err := s.lockEntry(key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	bodyPath, metaPath, err := s.entryPaths(key)
	if err != nil {
		return nil, err
	}

	entry, err := readMeta(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.stats.recordMiss()
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := s.now()
	if entry.Expired(now) {
		// 逻辑过期：物理文件留给 Sweeper，读取方只看到 miss。
		s.stats.recordMiss()
		return nil, ErrNotFound
	}

	payload, err := os.ReadFile(bodyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.stats.recordMiss()
			return nil, ErrNotFound
		}
		return nil, err
	}

	entry.LastAccessedAt = now
	if err := writeMeta(metaPath, entry); err != nil {
		// 访问时间仅用于报表，写回失败不影响命中结果。
		entry.LastAccessedAt = time.Time{}
	}

	s.stats.recordHit()
	return &ReadResult{Entry: entry, Payload: payload}, nil
}

func (s *fileStore) Put(ctx context.Context, key string, payload []byte, contentType string, ttl time.Duration) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid ttl: %v", ttl)
	}

	unlock, err := s.lockEntry(key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	bodyPath, metaPath, err := s.entryPaths(key)
	if err != nil {
		return nil, err
	}

	var replaced *Entry
	if old, err := readMeta(metaPath); err == nil {
		replaced = &old
	}

	if err := os.MkdirAll(filepath.Dir(bodyPath), 0o755); err != nil {
		return nil, err
	}
	if err := atomicWrite(bodyPath, payload); err != nil {
		return nil, err
	}

	now := s.now()
	entry := Entry{
		Key:            key,
		ContentType:    contentType,
		SizeBytes:      int64(len(payload)),
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := writeMeta(metaPath, entry); err != nil {
		os.Remove(bodyPath)
		return nil, err
	}

	if replaced != nil {
		s.stats.recordRemove(replaced.SizeBytes)
	}
	s.stats.recordPut(entry.SizeBytes)
	return &entry, nil
}

func (s *fileStore) Remove(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	unlock, err := s.lockEntry(key)
	if err != nil {
		return false, err
	}
	defer unlock()

	bodyPath, metaPath, err := s.entryPaths(key)
	if err != nil {
		return false, err
	}

	entry, metaErr := readMeta(metaPath)
	if metaErr != nil && !errors.Is(metaErr, fs.ErrNotExist) {
		return false, metaErr
	}

	if err := os.Remove(bodyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.Remove(metaPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	// 元数据是计数的唯一依据，仅移除孤立正文时不算一次删除。
	if metaErr != nil {
		return false, nil
	}

	s.stats.recordRemove(entry.SizeBytes)
	return true, nil
}

func (s *fileStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	var expired []string
	err := s.walkMeta(ctx, func(entry Entry) {
		if entry.Expired(now) {
			expired = append(expired, entry.Key)
		}
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *fileStore) Stats() Snapshot {
	return s.stats.Snapshot()
}

// seedStats 在启动时遍历元数据，恢复 entries/totalBytes 基线。
func (s *fileStore) seedStats() error {
	return s.walkMeta(context.Background(), func(entry Entry) {
		s.stats.recordPut(entry.SizeBytes)
	})
}

func (s *fileStore) walkMeta(ctx context.Context, fn func(Entry)) error {
	return filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), metaSuffix) {
			return nil
		}
		entry, err := readMeta(path)
		if err != nil {
			// 残缺的元数据跳过，等待下一次 Put 覆盖。
			return nil
		}
		fn(entry)
		return nil
	})
}

func (s *fileStore) lockEntry(key string) (func(), error) {
	if key == "" {
		return nil, errors.New("cache key required")
	}

	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}, nil
}

// entryPaths 将 key 映射为 <base>/<key[:2]>/<key>.body|.meta，并拒绝
// 任何可能逃逸 basePath 的字符。
func (s *fileStore) entryPaths(key string) (string, string, error) {
	if len(key) < 4 {
		return "", "", fmt.Errorf("cache key too short: %q", key)
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", "", fmt.Errorf("invalid cache key: %q", key)
		}
	}

	dir := filepath.Join(s.basePath, key[:2])
	return filepath.Join(dir, key+bodySuffix), filepath.Join(dir, key+metaSuffix), nil
}

func readMeta(metaPath string) (Entry, error) {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode cache metadata: %w", err)
	}
	return entry, nil
}

func writeMeta(metaPath string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return atomicWrite(metaPath, raw)
}

// atomicWrite 通过临时文件 + rename 保证读取方永远不会看到半截文件。
func atomicWrite(path string, payload []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(payload)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}
