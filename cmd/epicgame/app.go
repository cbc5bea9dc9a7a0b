package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/tranvictor/epicgame"
	redislock "github.com/tranvictor/epicgame/persistence/redis"
)

// app owns the long-lived pieces of a process and the current session.
// The session is rebuilt from scratch when the wallet changes network.
type app struct {
	cfg       epicgame.Config
	contracts epicgame.Contracts
	provider  *epicgame.LocalProvider
	pool      *epicgame.NetworkPool
	locker    epicgame.Locker
	notifier  epicgame.Notifier
	redis     *redis.Client

	mu      sync.RWMutex
	session *epicgame.Session
}

func newApp(notifier epicgame.Notifier) (*app, error) {
	cfg, err := epicgame.LoadConfig()
	if err != nil {
		return nil, err
	}
	contracts, err := cfg.Contracts()
	if err != nil {
		return nil, err
	}
	network, err := epicgame.DefaultNetworkResolver(cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("unsupported chain %d: %w", cfg.ChainID, err)
	}

	provider := epicgame.NewLocalProvider(network)
	switch {
	case cfg.PrivateKey != "":
		if _, err := provider.AddPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
	case cfg.Account != "":
		if !common.IsHexAddress(cfg.Account) {
			return nil, fmt.Errorf("invalid account %q", cfg.Account)
		}
		if _, err := provider.UnlockAccount(common.HexToAddress(cfg.Account)); err != nil {
			return nil, err
		}
	default:
		logger.Warn("No EPICGAME_PRIVATE_KEY or EPICGAME_ACCOUNT set, the wallet has no accounts")
	}

	rt := &app{
		cfg:       cfg,
		contracts: contracts,
		provider:  provider,
		pool:      epicgame.NewNetworkPool(nil, nil, nil),
		locker:    epicgame.NewMemoryLocker(),
		notifier:  notifier,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rt.redis = redis.NewClient(opts)
		holder, _ := os.Hostname()
		rt.locker = redislock.NewActionLock(rt.redis,
			redislock.WithActionLockTTL(cfg.LockTTL),
			redislock.WithActionLockHolder(fmt.Sprintf("%s/%d", holder, os.Getpid())),
		)
	}
	return rt, nil
}

// start builds and starts a session. Connection errors leave the session in
// place so its state (including the network error) can still be served.
func (rt *app) start(ctx context.Context, watch bool) (*epicgame.Session, error) {
	opts := []epicgame.SessionOption{
		epicgame.WithNetworkPool(rt.pool),
		epicgame.WithLocker(rt.locker),
		epicgame.WithNotifier(rt.notifier),
		epicgame.WithDefaults(rt.cfg.Defaults()),
	}
	if watch {
		opts = append(opts, epicgame.WithReloadHandler(rt.reload))
	}

	network, err := epicgame.DefaultNetworkResolver(rt.cfg.ChainID)
	if err != nil {
		return nil, err
	}
	session, err := epicgame.NewSession(network, rt.contracts, rt.provider, opts...)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	old := rt.session
	rt.session = session
	rt.mu.Unlock()
	if old != nil {
		old.Close()
	}

	return session, session.Start(ctx)
}

// reload runs on the watcher goroutine of the session it replaces, so the
// rebuild happens elsewhere: Close waits for that goroutine.
func (rt *app) reload(chainID uint64) {
	go func() {
		logger.WithFields(logger.Fields{
			"chain_id": chainID,
		}).Info("Rebuilding session")
		if _, err := rt.start(context.Background(), true); err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Session restarted with an error")
		}
	}()
}

func (rt *app) current() *epicgame.Session {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.session
}

func (rt *app) close() {
	if s := rt.current(); s != nil {
		s.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}
