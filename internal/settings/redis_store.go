package settings

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"

	"saleshub/backend/internal/domain"
)

const creditDefaultsKey = "saleshub:credit-defaults"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) LoadCreditDefaults(ctx context.Context) (domain.CreditDefaults, bool, error) {
	val, err := s.client.Get(ctx, creditDefaultsKey).Result()
	if err == redis.Nil {
		return domain.CreditDefaults{}, false, nil
	}
	if err != nil {
		return domain.CreditDefaults{}, false, err
	}

	var defaults domain.CreditDefaults
	if err := json.Unmarshal([]byte(val), &defaults); err != nil {
		return domain.CreditDefaults{}, false, err
	}
	return defaults, true, nil
}

func (s *RedisStore) SaveCreditDefaults(ctx context.Context, defaults domain.CreditDefaults) error {
	payload, err := json.Marshal(defaults)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, creditDefaultsKey, payload, 0).Err()
}
