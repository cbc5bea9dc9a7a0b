package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tranvictor/epicgame"
)

// Key prefix for action locks
const (
	actionLockKeyPrefix = "epicgame:lock:" // lock record by session key
)

// DefaultLockTTL bounds how long a crashed holder blocks other processes.
const DefaultLockTTL = 2 * time.Minute

// releaseScript deletes the lock only when it still carries our record.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry of a lock we still hold.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ActionLock is a Redis-backed epicgame.Locker. It lets several processes
// drive the same account without running two actions at once.
//
// Locks carry a TTL so a crashed holder cannot block the account forever;
// while a lock is held it is extended in the background every TTL/3.
type ActionLock struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	holder    string
}

// ActionLockOption configures an ActionLock.
type ActionLockOption func(*ActionLock)

// WithActionLockKeyPrefix sets a custom prefix for all Redis keys.
func WithActionLockKeyPrefix(prefix string) ActionLockOption {
	return func(l *ActionLock) {
		l.keyPrefix = prefix
	}
}

// WithActionLockTTL sets the lock expiry.
func WithActionLockTTL(ttl time.Duration) ActionLockOption {
	return func(l *ActionLock) {
		l.ttl = ttl
	}
}

// WithActionLockHolder names this process in lock records.
func WithActionLockHolder(holder string) ActionLockOption {
	return func(l *ActionLock) {
		l.holder = holder
	}
}

// NewActionLock creates a new Redis-based action lock.
func NewActionLock(client redis.UniversalClient, opts ...ActionLockOption) *ActionLock {
	l := &ActionLock{
		client: client,
		ttl:    DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ttl <= 0 {
		l.ttl = DefaultLockTTL
	}
	return l
}

func (l *ActionLock) key(sessionKey string) string {
	if l.keyPrefix != "" {
		return l.keyPrefix + ":" + actionLockKeyPrefix + sessionKey
	}
	return actionLockKeyPrefix + sessionKey
}

// lockRecordData is the JSON value stored under a lock key.
type lockRecordData struct {
	Token      string `json:"token"`
	Holder     string `json:"holder,omitempty"`
	AcquiredAt int64  `json:"acquired_at"` // Nanoseconds
}

// LockInfo describes the current holder of a lock.
type LockInfo struct {
	Holder     string
	AcquiredAt time.Time
	TTL        time.Duration
}

// Acquire takes the lock for key with SET NX. A held lock fails immediately
// with epicgame.ErrActionInProgress.
func (l *ActionLock) Acquire(ctx context.Context, key string) (epicgame.ReleaseFunc, error) {
	lockKey := l.key(key)

	data, err := json.Marshal(lockRecordData{
		Token:      uuid.NewString(),
		Holder:     l.holder,
		AcquiredAt: time.Now().UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize lock record: %w", err)
	}

	acquired, err := l.client.SetNX(ctx, lockKey, data, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, epicgame.ErrActionInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lockKey, data, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			var deleted int
			deleted, err = releaseScript.Run(ctx, l.client, []string{lockKey}, data).Int()
			if err != nil {
				err = fmt.Errorf("failed to release lock: %w", err)
				return
			}
			if deleted == 0 {
				err = epicgame.ErrLockNotHeld
			}
		})
		return err
	}, nil
}

func (l *ActionLock) keepAlive(lockKey string, data []byte, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			extended, err := extendScript.Run(context.Background(), l.client, []string{lockKey}, data, l.ttl.Milliseconds()).Int()
			if err != nil {
				logger.WithFields(logger.Fields{
					"key":   lockKey,
					"error": err,
				}).Warn("Couldn't extend action lock")
				continue
			}
			if extended == 0 {
				logger.WithFields(logger.Fields{
					"key": lockKey,
				}).Warn("Action lock expired while held")
				return
			}
		}
	}
}

// Holder returns the current holder of key, or epicgame.ErrLockNotHeld when
// the lock is free.
func (l *ActionLock) Holder(ctx context.Context, key string) (*LockInfo, error) {
	lockKey := l.key(key)

	data, err := l.client.Get(ctx, lockKey).Bytes()
	if err == redis.Nil {
		return nil, epicgame.ErrLockNotHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}

	var rec lockRecordData
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize lock record: %w", err)
	}

	ttl, err := l.client.PTTL(ctx, lockKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get lock ttl: %w", err)
	}

	return &LockInfo{
		Holder:     rec.Holder,
		AcquiredAt: time.Unix(0, rec.AcquiredAt),
		TTL:        ttl,
	}, nil
}
