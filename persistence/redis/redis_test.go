package redis

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	sharedRedisContainer *tcredis.RedisContainer
	sharedRedisConnStr   string
	containerErr         error
)

// TestMain sets up a shared Redis container for all tests in this package.
func TestMain(m *testing.M) {
	ctx := context.Background()

	redisContainer, err := startRedisContainer(ctx)
	if err != nil {
		// Container failed to start - container tests will skip
		containerErr = err
		os.Exit(m.Run())
	}

	sharedRedisContainer = redisContainer

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		containerErr = err
		os.Exit(m.Run())
	}
	sharedRedisConnStr = connStr

	code := m.Run()

	if redisContainer != nil {
		_ = redisContainer.Terminate(ctx)
	}

	os.Exit(code)
}

// startRedisContainer turns the panic testcontainers raises when there is no
// Docker host into an error, so the miniredis tests still run.
func startRedisContainer(ctx context.Context) (c *tcredis.RedisContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("docker unavailable: %v", r)
		}
	}()
	return tcredis.Run(ctx, "redis:7-alpine")
}

// testRedisClient returns a client for the shared testcontainer Redis.
// Each test gets a fresh database by using FLUSHDB.
func testRedisClient(t *testing.T) redis.UniversalClient {
	if containerErr != nil {
		t.Skipf("Redis container not available: %v", containerErr)
	}

	opts, err := redis.ParseURL(sharedRedisConnStr)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush Redis DB: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return client
}

// testMiniRedis returns an in-memory Redis whose clock the test controls.
func testMiniRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStartRedisContainer_NeverPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		c, err := startRedisContainer(ctx)
		if err == nil && c != nil {
			_ = c.Terminate(context.Background())
		}
	})
}
