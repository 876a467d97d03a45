package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Domenick1991/airport-booking/config"
	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/metrics"
)

type RedisCache struct {
	client     redis.Cmdable
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL,
	)
}

func NewRedisCacheWithClient(client redis.Cmdable, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL}
}

// GetFlight returns nil, nil on a miss.
func (c *RedisCache) GetFlight(ctx context.Context, id uuid.UUID) (*domain.Flight, error) {
	metrics.IncRedisRequest("get")
	data, err := c.client.Get(ctx, flightKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.IncRedisMiss()
			return nil, nil
		}
		return nil, err
	}

	var flight domain.Flight
	if err := json.Unmarshal(data, &flight); err != nil {
		return nil, err
	}
	metrics.IncRedisHit()
	return &flight, nil
}

func (c *RedisCache) SetFlight(ctx context.Context, flight *domain.Flight) error {
	payload, err := json.Marshal(flight)
	if err != nil {
		return err
	}
	metrics.IncRedisRequest("set")
	return c.client.Set(ctx, flightKey(flight.ID), payload, c.flightsTTL).Err()
}

func (c *RedisCache) DeleteFlight(ctx context.Context, id uuid.UUID) error {
	metrics.IncRedisRequest("delete")
	return c.client.Del(ctx, flightKey(id)).Err()
}

// ErrLockTimeout is returned when a booking lock stays held for longer than the wait allowed.
var ErrLockTimeout = errors.New("booking lock wait timed out")

const (
	lockRetryMin = 10 * time.Millisecond
	lockRetryMax = 200 * time.Millisecond
)

// releaseLock deletes the lock only while it still carries the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireBookingLock takes an exclusive lock on one flight's cabin class, waiting up to ttl
// for a current holder. The returned token must be passed to ReleaseBookingLock.
func (c *RedisCache) AcquireBookingLock(ctx context.Context, flightID uuid.UUID, class domain.SeatClass, ttl time.Duration) (string, error) {
	key := bookingLockKey(flightID, class)
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)
	backoff := lockRetryMin

	for {
		metrics.IncRedisRequest("lock")
		ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().Add(backoff).After(deadline) {
			return "", ErrLockTimeout
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, lockRetryMax)
	}
}

// ReleaseBookingLock is a no-op when the lock expired and was taken by someone else.
func (c *RedisCache) ReleaseBookingLock(ctx context.Context, flightID uuid.UUID, class domain.SeatClass, token string) error {
	metrics.IncRedisRequest("unlock")
	return releaseLock.Run(ctx, c.client, []string{bookingLockKey(flightID, class)}, token).Err()
}

// Close releases the underlying client when it owns one.
func (c *RedisCache) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func flightKey(id uuid.UUID) string {
	return fmt.Sprintf("cache:flight:%s", id)
}

func bookingLockKey(flightID uuid.UUID, class domain.SeatClass) string {
	return fmt.Sprintf("lock:flight:%s:class:%s", flightID, class)
}
