package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
	"github.com/agrimacro/agrimacro/pkg/redis"
)

// Mirror is a secondary store consulted when the cache file is unusable.
// *redis.Cache 가 구현
type Mirror interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Store is the per-adapter last-good snapshot cache
// ⭐ SSOT: {adapter}/cache/{adapter}_latest.json 은 여기서만 쓰고 읽음
type Store struct {
	paths  paths.Paths
	mirror Mirror
	logger *logger.Logger
}

// New creates a cache store. mirror may be nil.
func New(p paths.Paths, mirror Mirror, log *logger.Logger) *Store {
	return &Store{
		paths:  p,
		mirror: mirror,
		logger: log.WithField("module", "cache"),
	}
}

// Save atomically replaces the adapter's cache entry
func (s *Store) Save(ctx context.Context, adapter string, snap *contracts.RawSnapshot) error {
	if snap == nil || snap.Status != contracts.SnapshotOK {
		return fmt.Errorf("only ok snapshots are cached (adapter %s)", adapter)
	}

	if err := store.WriteJSON(s.paths.Cache(adapter), snap); err != nil {
		return fmt.Errorf("failed to save cache for %s: %w", adapter, err)
	}

	if s.mirror != nil {
		if err := s.mirror.Set(ctx, redis.SnapshotKey(adapter), snap, redis.TTLWeekly); err != nil {
			// 미러 실패는 파일 캐시에 영향 없음
			s.logger.WithError(err).WithField("adapter", adapter).Warn("cache mirror write failed")
		}
	}
	return nil
}

// Load returns the adapter's last-good snapshot.
// 파일이 없거나 손상되면 미러를 보고, 그래도 없으면 ErrCacheMiss
func (s *Store) Load(ctx context.Context, adapter string) (*contracts.RawSnapshot, error) {
	snap, err := s.loadFile(adapter)
	if err == nil {
		return snap, nil
	}

	if s.mirror != nil {
		var mirrored contracts.RawSnapshot
		found, merr := s.mirror.Get(ctx, redis.SnapshotKey(adapter), &mirrored)
		if merr == nil && found && len(mirrored.Data) > 0 {
			s.logger.WithField("adapter", adapter).Info("cache served from mirror")
			return &mirrored, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", adapter, contracts.ErrCacheMiss)
}

func (s *Store) loadFile(adapter string) (*contracts.RawSnapshot, error) {
	data, err := os.ReadFile(s.paths.Cache(adapter))
	if err != nil {
		return nil, err
	}

	var snap contracts.RawSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.WithError(err).WithField("adapter", adapter).Warn("corrupt cache file ignored")
		return nil, err
	}
	if len(snap.Data) == 0 {
		return nil, fmt.Errorf("cache entry for %s has no data", adapter)
	}
	return &snap, nil
}
