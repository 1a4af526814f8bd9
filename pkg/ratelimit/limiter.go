package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
)

const (
	shardCount          = 32
	defaultLimit        = 10
	defaultWindow       = 60 * time.Second
	defaultLockout      = 5 * time.Minute
	defaultIdleExpiry   = 30 * time.Minute
	consecutiveToLock   = 3
	persistenceInterval = 30 * time.Second
	redisStateKey       = "replyguard:ratelimit:state"
)

type Config struct {
	Limit          int           `mapstructure:"limit"`
	Window         time.Duration `mapstructure:"window"`
	Lockout        time.Duration `mapstructure:"lockout"`
	IdleExpiry     time.Duration `mapstructure:"idle_expiry"`
	PersistToRedis bool          `mapstructure:"persist_to_redis"`
}

func (c *Config) applyDefaults() {
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Lockout <= 0 {
		c.Lockout = defaultLockout
	}
	if c.IdleExpiry <= 0 {
		c.IdleExpiry = defaultIdleExpiry
	}
}

// state is the per-customer sliding window plus lockout bookkeeping.
type state struct {
	Timestamps   []time.Time `json:"timestamps"`
	Violations   int         `json:"violations"`
	LockoutUntil time.Time   `json:"lockout_until"`
	LastSeen     time.Time   `json:"last_seen"`
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*state
}

// Limiter tracks per-customer request frequency with a sharded map so
// unrelated customers never contend on a single lock. State is in-memory;
// a background flusher snapshots it to redis so a restarted process can
// warm-start. Losing the snapshot only means brief under-throttling.
type Limiter struct {
	cfg          Config
	shards       [shardCount]*shard
	timeProvider func() time.Time
	redis        *redis.Client
	logger       *logrus.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

type Opts struct {
	TimeProvider func() time.Time
	// Redis enables best-effort persistence across restarts. Nil disables it.
	Redis *redis.Client
}

func NewLimiter(cfg Config, logger *logrus.Logger, opts *Opts) *Limiter {
	cfg.applyDefaults()
	l := &Limiter{
		cfg:          cfg,
		timeProvider: time.Now,
		logger:       logger,
		done:         make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*state)}
	}
	if opts != nil && opts.TimeProvider != nil {
		l.timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.Redis != nil && cfg.PersistToRedis {
		l.redis = opts.Redis
		l.restore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.maintenanceLoop(ctx)
	return l
}

// Check records one request from customerID and reports whether it is
// allowed, along with the remaining capacity in the current window.
func (l *Limiter) Check(customerID string) (bool, int) {
	now := l.timeProvider()
	sh := l.shardFor(customerID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.entries[customerID]
	if !ok {
		st = &state{}
		sh.entries[customerID] = st
	}
	st.LastSeen = now

	if now.Before(st.LockoutUntil) {
		return false, 0
	}

	windowStart := now.Add(-l.cfg.Window)
	kept := st.Timestamps[:0]
	for _, ts := range st.Timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	st.Timestamps = kept

	if len(st.Timestamps) >= l.cfg.Limit {
		st.Violations++
		if st.Violations >= consecutiveToLock {
			st.LockoutUntil = now.Add(l.cfg.Lockout)
			st.Violations = 0
			prometheus.RateLimitLockoutTotal.Inc()
			l.logger.WithFields(logrus.Fields{
				"customer_id": customerID,
				"until":       st.LockoutUntil,
			}).Warn("customer locked out after consecutive rate limit violations")
		}
		return false, 0
	}

	st.Violations = 0
	st.Timestamps = append(st.Timestamps, now)
	return true, l.cfg.Limit - len(st.Timestamps)
}

// Shutdown stops the janitor and flushes a final snapshot.
func (l *Limiter) Shutdown() {
	l.cancel()
	<-l.done
	if l.redis != nil {
		l.persist()
	}
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

func (l *Limiter) maintenanceLoop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(persistenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.expireIdle()
			if l.redis != nil {
				l.persist()
			}
		}
	}
}

func (l *Limiter) expireIdle() {
	cutoff := l.timeProvider().Add(-l.cfg.IdleExpiry)
	for _, sh := range l.shards {
		sh.mu.Lock()
		for key, st := range sh.entries {
			if st.LastSeen.Before(cutoff) && l.timeProvider().After(st.LockoutUntil) {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
}

// persist snapshots all counters into a single redis hash. Failures are
// logged and ignored; persistence is an optimization, not a correctness
// requirement.
func (l *Limiter) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot := make(map[string]interface{})
	for _, sh := range l.shards {
		sh.mu.Lock()
		for key, st := range sh.entries {
			raw, err := json.Marshal(st)
			if err != nil {
				continue
			}
			snapshot[key] = string(raw)
		}
		sh.mu.Unlock()
	}
	if len(snapshot) == 0 {
		return
	}

	pipe := l.redis.TxPipeline()
	pipe.Del(ctx, redisStateKey)
	pipe.HSet(ctx, redisStateKey, snapshot)
	pipe.Expire(ctx, redisStateKey, l.cfg.IdleExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.WithError(err).Debug("rate limit snapshot persistence failed")
	}
}

func (l *Limiter) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := l.redis.HGetAll(ctx, redisStateKey).Result()
	if err != nil {
		l.logger.WithError(err).Debug("rate limit snapshot restore failed, starting cold")
		return
	}
	restored := 0
	for key, raw := range entries {
		var st state
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue
		}
		sh := l.shardFor(key)
		sh.mu.Lock()
		sh.entries[key] = &st
		sh.mu.Unlock()
		restored++
	}
	if restored > 0 {
		l.logger.Info(fmt.Sprintf("restored rate limit state for %d customers", restored))
	}
}
