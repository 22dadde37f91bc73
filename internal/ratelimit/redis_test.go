package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RedisLimiterSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	limiter *Redis
	ctx     context.Context
}

func (s *RedisLimiterSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.limiter = NewRedis(s.rdb, Config{Scope: "orders", Limit: 2, Window: 5 * time.Minute}, zerolog.Nop())
	s.ctx = context.Background()
}

func (s *RedisLimiterSuite) TearDownTest() {
	_ = s.rdb.Close()
}

func TestRedisLimiterSuite(t *testing.T) {
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) TestFixedWindow() {
	require.True(s.T(), s.limiter.Allow(s.ctx, "1.2.3.4"))
	require.True(s.T(), s.limiter.Allow(s.ctx, "1.2.3.4"))
	require.False(s.T(), s.limiter.Allow(s.ctx, "1.2.3.4"))
	require.True(s.T(), s.limiter.Allow(s.ctx, "5.6.7.8"))

	require.Equal(s.T(), 5*time.Minute, s.mr.TTL("rl:orders:1.2.3.4"))

	s.mr.FastForward(5*time.Minute + time.Second)
	require.True(s.T(), s.limiter.Allow(s.ctx, "1.2.3.4"))
}

func (s *RedisLimiterSuite) TestWindowNotExtendedByHits() {
	require.True(s.T(), s.limiter.Allow(s.ctx, "k"))
	s.mr.FastForward(4 * time.Minute)
	require.True(s.T(), s.limiter.Allow(s.ctx, "k"))
	require.Equal(s.T(), time.Minute, s.mr.TTL("rl:orders:k"))
}

func (s *RedisLimiterSuite) TestCounterWithoutExpiryGetsWindow() {
	require.NoError(s.T(), s.mr.Set("rl:orders:stale", "7"))
	require.Equal(s.T(), time.Duration(0), s.mr.TTL("rl:orders:stale"))

	require.False(s.T(), s.limiter.Allow(s.ctx, "stale"))
	require.Equal(s.T(), 5*time.Minute, s.mr.TTL("rl:orders:stale"))

	s.mr.FastForward(5*time.Minute + time.Second)
	require.True(s.T(), s.limiter.Allow(s.ctx, "stale"))
}

func (s *RedisLimiterSuite) TestFailsOpen() {
	s.mr.Close()
	for i := 0; i < 5; i++ {
		require.True(s.T(), s.limiter.Allow(s.ctx, "k"))
	}
}
