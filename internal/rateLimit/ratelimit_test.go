package rateLimit_test

import (
	"context"
	"testing"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	redisadapter "github.com/robertarktes/event-admissions/internal/adapters/redis"
	"github.com/robertarktes/event-admissions/internal/rateLimit"
)

func newTestLimiter(t *testing.T) *rateLimit.RateLimiter {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	client := redisclient.NewClient(&redisclient.Options{Addr: host + ":" + port.Port()})
	return rateLimit.NewRateLimiter(redisadapter.NewCache(client, time.Minute))
}

func TestAllow_BlocksOverRate(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	rl := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !rl.Allow(ctx, "client-a", 3, time.Minute) {
			t.Fatalf("request %d blocked under the rate", i)
		}
	}
	if rl.Allow(ctx, "client-a", 3, time.Minute) {
		t.Fatal("request over the rate was allowed")
	}
	if !rl.Allow(ctx, "client-b", 3, time.Minute) {
		t.Fatal("unrelated key was blocked")
	}
}

func TestAllow_WindowResetsUnderSteadyTraffic(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	rl := newTestLimiter(t)
	ctx := context.Background()

	const rate = 3
	window := time.Second

	for i := 0; i < rate; i++ {
		if !rl.Allow(ctx, "steady", rate, window) {
			t.Fatalf("request %d blocked under the rate", i)
		}
	}

	// A client that keeps retrying must get through once the window
	// expires; the expiry must not be refreshed by the rejected attempts.
	deadline := time.Now().Add(3 * window)
	allowed := false
	for time.Now().Before(deadline) {
		if rl.Allow(ctx, "steady", rate, window) {
			allowed = true
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !allowed {
		t.Fatal("window never reset while the client kept retrying")
	}
}
