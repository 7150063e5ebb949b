package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/health"
)

func TestProbePingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	probe := health.Probe{Redis: client}
	require.NoError(t, probe.PingRedis(context.Background(), time.Second))

	mr.Close()
	require.Error(t, probe.PingRedis(context.Background(), 100*time.Millisecond))
}

func TestProbeWithoutDependencies(t *testing.T) {
	probe := health.Probe{}
	require.Error(t, probe.PingDB(context.Background(), time.Second))
	require.Error(t, probe.PingRedis(context.Background(), time.Second))
}
