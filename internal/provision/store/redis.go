package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"detour/internal/provision/models"
	"detour/pkg/platform/sentinel"
)

const redisKeyPrefix = "detour:client:"

// Redis is a Registry backed by a shared redis instance, for deployments
// where several panel replicas must agree on name uniqueness. SETNX gives
// the atomic insert-if-absent the contract requires.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+name).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Redis) Put(ctx context.Context, record *models.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+record.Client.Name, payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, name string) (*models.Record, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var record models.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode record for %s: %w", name, err)
	}
	return &record, nil
}

func (s *Redis) Delete(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Del(ctx, redisKeyPrefix+name).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Redis) List(ctx context.Context) ([]*models.Record, error) {
	var records []*models.Record
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, err
		}
		var record models.Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode record at %s: %w", iter.Val(), err)
		}
		records = append(records, &record)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Client.Name < records[j].Client.Name
	})
	return records, nil
}

func (s *Redis) UpdateDocument(ctx context.Context, name string, ref models.DocumentRef) error {
	record, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	record.Document = ref
	record.Client.UpdatedAt = time.Now()
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	// XX: only update an existing key; a concurrent delete wins.
	ok, err := s.client.SetXX(ctx, redisKeyPrefix+name, payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}
