// Package redis provides a Redis-based epicgame.Locker.
//
// A session holds its action lock for the whole of an action, confirmations
// included. The in-process epicgame.MemoryLocker is enough while one process
// drives an account; ActionLock is for several processes (HTTP replicas,
// a CLI run next to a server) driving the same account.
//
// # Basic Usage
//
//	import (
//	    "github.com/redis/go-redis/v9"
//	    "github.com/tranvictor/epicgame"
//	    redislock "github.com/tranvictor/epicgame/persistence/redis"
//	)
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: "localhost:6379",
//	})
//
//	session, err := epicgame.NewSession(network, contracts, provider,
//	    epicgame.WithLocker(redislock.NewActionLock(client,
//	        redislock.WithActionLockTTL(2*time.Minute),
//	        redislock.WithActionLockHolder(hostname),
//	    )),
//	)
//
// # Multi-Tenant Usage
//
// Use key prefixes to isolate environments sharing the same Redis instance:
//
//	prodLock := redislock.NewActionLock(client, redislock.WithActionLockKeyPrefix("prod"))
//	testLock := redislock.NewActionLock(client, redislock.WithActionLockKeyPrefix("test"))
package redis
