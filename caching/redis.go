package caching

import (
	"context"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/goutils/redisutils"
)

type RedisCache struct {
	readClient  *redis.Client
	writeClient *redis.Client
}

var _ DbCache = (*RedisCache)(nil)

func NewRedisCache(readClient, writeClient *redis.Client) *RedisCache {
	cache := &RedisCache{readClient: readClient, writeClient: writeClient}

	if err := gi.Inject(cache); err != nil {
		log.WithError(err).Fatal("failed to inject redis cache")
	}

	return cache
}

// GetGraphAPIKey returns the persisted rotating key, ErrNotFound when unset.
func (r *RedisCache) GetGraphAPIKey(ctx context.Context) (string, error) {
	key, err := r.readClient.Get(ctx, redisutils.REDIS_KEY_GRAPH_API_KEY).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}

	if err != nil {
		log.WithError(err).Error("failed to read graph api key")

		return "", err
	}

	return key, nil
}

func (r *RedisCache) StoreGraphAPIKey(ctx context.Context, key string) error {
	err := r.writeClient.Set(ctx, redisutils.REDIS_KEY_GRAPH_API_KEY, key, 0).Err()
	if err != nil {
		log.WithError(err).Error("failed to store graph api key")

		return err
	}

	return nil
}

func (r *RedisCache) ClearGraphAPIKey(ctx context.Context) error {
	err := r.writeClient.Del(ctx, redisutils.REDIS_KEY_GRAPH_API_KEY).Err()
	if err != nil {
		log.WithError(err).Error("failed to clear graph api key")

		return err
	}

	return nil
}

func (r *RedisCache) GetLastViewedOperator(ctx context.Context) (string, error) {
	operatorID, err := r.readClient.Get(ctx, redisutils.REDIS_KEY_OPERATOR_LAST_VIEWED).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}

	if err != nil {
		log.WithError(err).Error("failed to read last viewed operator")

		return "", err
	}

	return operatorID, nil
}

func (r *RedisCache) StoreLastViewedOperator(ctx context.Context, operatorID string) error {
	err := r.writeClient.Set(ctx, redisutils.REDIS_KEY_OPERATOR_LAST_VIEWED, operatorID, 0).Err()
	if err != nil {
		log.WithError(err).Error("failed to store last viewed operator")

		return err
	}

	return nil
}
