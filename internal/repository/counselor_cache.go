package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"go.uber.org/zap"
)

const (
	counselorListCacheKey   = "counselors:all"
	counselorCacheKeyPrefix = "counselor:"
)

// CachedCounselorRepository はカウンセラープロフィールの参照結果をRedisにキャッシュします
// プロフィールはほぼ更新されないため、TTLの経過でのみ無効化します
// Redisの障害時はキャッシュを使わずnextにそのまま問い合わせます
type CachedCounselorRepository struct {
	next   CounselorRepository
	client *redis.Client
	ttl    time.Duration
}

func NewCachedCounselorRepository(next CounselorRepository, client *redis.Client, ttl time.Duration) *CachedCounselorRepository {
	return &CachedCounselorRepository{next: next, client: client, ttl: ttl}
}

func (r *CachedCounselorRepository) List(ctx context.Context) ([]model.CounselorProfile, error) {
	var cached []model.CounselorProfile
	if r.get(ctx, counselorListCacheKey, &cached) {
		return cached, nil
	}

	profiles, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.set(ctx, counselorListCacheKey, profiles)
	return profiles, nil
}

func (r *CachedCounselorRepository) GetByID(ctx context.Context, id string) (*model.CounselorProfile, error) {
	key := counselorCacheKeyPrefix + id

	var cached model.CounselorProfile
	if r.get(ctx, key, &cached) {
		return &cached, nil
	}

	profile, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, profile)
	return profile, nil
}

func (r *CachedCounselorRepository) get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("counselor cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.L().Warn("counselor cache entry is broken", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *CachedCounselorRepository) set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		logger.L().Warn("counselor cache write failed", zap.String("key", key), zap.Error(err))
	}
}
