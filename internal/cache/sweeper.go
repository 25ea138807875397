package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper 定期移除过期缓存条目，也支持外部同步触发一次清理。
// 周期任务与同步触发可以并发执行；Remove 对已消失的 key 幂等，
// 因此同一条目不会被重复计数。
type Sweeper struct {
	store    Store
	logger   *logrus.Logger
	interval time.Duration
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewSweeper 构建清理器；interval <= 0 表示只保留同步触发能力。
func NewSweeper(store Store, logger *logrus.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 启动后台循环。重复调用只生效一次。
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		if s.interval <= 0 {
			close(s.done)
			return
		}
		go s.run()
	})
}

// Stop 停止后台循环并等待其退出；未 Start 过也可安全调用。
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.startOnce.Do(func() { close(s.done) })
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			removed, err := s.SweepNow(context.Background())
			if err != nil {
				s.logger.WithError(err).Warn("cache_sweep_failed")
				continue
			}
			if removed > 0 {
				s.logger.WithFields(logrus.Fields{
					"action":  "cache_sweep",
					"trigger": "periodic",
					"removed": removed,
				}).Info("已清理过期缓存")
			}
		}
	}
}

// SweepNow 同步执行一轮清理，返回真正移除的条目数。
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range expired {
		ok, err := s.store.Remove(ctx, key)
		if err != nil {
			s.logger.WithError(err).
				WithField("key", key).
				Warn("cache_remove_failed")
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
