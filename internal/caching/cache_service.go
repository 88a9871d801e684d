package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"carshelf/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type CacheService interface {
	// Car caching
	GetCar(ctx context.Context, carID uuid.UUID) (*models.Car, error)
	SetCar(ctx context.Context, car *models.Car, ttl time.Duration) error
	DeleteCar(ctx context.Context, carID uuid.UUID) error

	// Session revocation
	RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("Redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("Redis connection established", zap.String("addr", parsedAddr))
	}

	return NewCacheServiceFromClient(client)
}

// NewCacheServiceFromClient wraps an existing redis client.
func NewCacheServiceFromClient(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func carKey(carID uuid.UUID) string {
	return fmt.Sprintf("carshelf:car:%s", carID.String())
}

func revokedSessionKey(sessionID string) string {
	return fmt.Sprintf("carshelf:revoked:%s", sessionID)
}

func (r *redisCacheService) GetCar(ctx context.Context, carID uuid.UUID) (*models.Car, error) {
	data, err := r.client.Get(ctx, carKey(carID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var car models.Car
	if err := json.Unmarshal(data, &car); err != nil {
		return nil, err
	}
	car.Reconcile()
	return &car, nil
}

func (r *redisCacheService) SetCar(ctx context.Context, car *models.Car, ttl time.Duration) error {
	data, err := json.Marshal(car)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, carKey(car.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteCar(ctx context.Context, carID uuid.UUID) error {
	return r.client.Del(ctx, carKey(carID)).Err()
}

func (r *redisCacheService) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedSessionKey(sessionID), "revoked", ttl).Err()
}

func (r *redisCacheService) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedSessionKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
