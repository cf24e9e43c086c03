package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

const DEFAULT_REDIS_ADDR = "localhost:6379"

// Service is the redis connection behind the round mirror.
type Service interface {
	GetClient() *redis.Client
	// Mirror returns a mirror that writes through this connection.
	Mirror(balance float64) *Mirror
	RecentCrashPoints(ctx context.Context, n int64) ([]float64, error)
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
}

var cacheInstance *service

// New connects to redis once per process using REDIS_URL, REDIS_PASSWORD and
// REDIS_DB. It returns nil when redis is unreachable; the game then runs
// without a mirror.
func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	opts, err := optionsFromEnv()
	if err != nil {
		log.Printf("[CACHE] Invalid redis settings: %v", err)
		return nil
	}

	s, err := connect(opts)
	if err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without round mirror")
		return nil
	}

	log.Printf("[CACHE] Redis connected at %s", opts.Addr)
	cacheInstance = s
	return cacheInstance
}

// optionsFromEnv accepts REDIS_URL either as host:port or as a redis:// URL.
// REDIS_PASSWORD and REDIS_DB override what the URL carries.
func optionsFromEnv() (*redis.Options, error) {
	opts := &redis.Options{Addr: DEFAULT_REDIS_ADDR}

	if raw := os.Getenv("REDIS_URL"); raw != "" {
		if strings.Contains(raw, "://") {
			parsed, err := redis.ParseURL(raw)
			if err != nil {
				return nil, fmt.Errorf("parse REDIS_URL: %w", err)
			}
			opts = parsed
		} else {
			opts.Addr = raw
		}
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		opts.Password = pw
	}
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB %q: %w", raw, err)
		}
		opts.DB = db
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return opts, nil
}

func connect(opts *redis.Options) (*service, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout+time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	return &service{client: client}, nil
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Mirror(balance float64) *Mirror {
	return NewMirror(s.client, balance)
}

func (s *service) RecentCrashPoints(ctx context.Context, n int64) ([]float64, error) {
	return RecentCrashPoints(ctx, s.client, n)
}

// Health reports connectivity, how many crashed rounds the mirror holds and
// the pool counters.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.client.Ping(ctx).Err(); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Round mirror is healthy"

	if n, err := s.client.LLen(ctx, HISTORY_KEY).Result(); err == nil {
		stats["mirrored_rounds"] = strconv.FormatInt(n, 10)
	}
	if last, err := s.RecentCrashPoints(ctx, 1); err == nil && len(last) == 1 {
		stats["last_crash_point"] = strconv.FormatFloat(last[0], 'f', 2, 64)
	}

	pool := s.client.PoolStats()
	stats["total_conns"] = strconv.FormatUint(uint64(pool.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(pool.IdleConns), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(pool.Timeouts), 10)

	return stats
}

// Close releases the connection. Closing the shared instance lets the next
// New reconnect.
func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	if cacheInstance == s {
		cacheInstance = nil
	}
	return s.client.Close()
}
