package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Dev-Manje/helpdesk/internal/config"
)

// ErrRedisDisabled is returned by helpers when no Redis address is configured.
var ErrRedisDisabled = errors.New("redis client not configured")

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration. It returns
// a disabled wrapper when no address is set.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; running without redis")
		return &Redis{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Enabled reports whether a client is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return ErrRedisDisabled
	}
	return r.Client.Ping(ctx).Err()
}

var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Lease is a held Redis lock. Release only deletes the key while this
// holder still owns it.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Release gives the lease back.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseLeaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// AcquireLease takes key for ttl. It returns (nil, nil) when another
// holder owns it.
func (r *Redis) AcquireLease(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if !r.Enabled() {
		return nil, ErrRedisDisabled
	}
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{client: r.Client, key: key, token: token}, nil
}

// StreamPublisher appends JSON payloads to a Redis stream for external
// notification consumers.
type StreamPublisher struct {
	redis  *Redis
	stream string
	maxLen int64
}

// NewStreamPublisher builds a publisher writing to stream, trimmed to
// roughly maxLen entries.
func NewStreamPublisher(r *Redis, stream string, maxLen int64) *StreamPublisher {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &StreamPublisher{redis: r, stream: stream, maxLen: maxLen}
}

// Publish appends one entry, retrying transient failures briefly.
func (p *StreamPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	if !p.redis.Enabled() {
		return ErrRedisDisabled
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(func() error {
		err := p.redis.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]any{"type": eventType, "payload": payload},
		}).Err()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
