//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"procureflow/internal/platform/config"
	platformredis "procureflow/internal/platform/redis"
	"procureflow/pkg/testutil/containers"
)

type LockerIntegrationSuite struct {
	suite.Suite
	client *platformredis.Client
	locker *platformredis.Locker
}

func TestLockerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(LockerIntegrationSuite))
}

func (s *LockerIntegrationSuite) SetupSuite() {
	redisContainer := containers.GetManager().GetRedis(s.T())

	client, err := platformredis.New(config.RedisConfig{
		URL:          redisContainer.Addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	s.Require().NoError(err)
	s.Require().NotNil(client)

	s.client = client
	s.locker = platformredis.NewLocker(client, 5*time.Second)
}

func (s *LockerIntegrationSuite) SetupTest() {
	s.Require().NoError(containers.GetManager().GetRedis(s.T()).FlushAll(context.Background()))
}

func (s *LockerIntegrationSuite) TestAcquireAndRelease() {
	ctx := context.Background()

	release, err := s.locker.Acquire(ctx, "record-1")
	s.Require().NoError(err)
	release()

	// Released lock is immediately acquirable again.
	release, err = s.locker.Acquire(ctx, "record-1")
	s.Require().NoError(err)
	release()
}

func (s *LockerIntegrationSuite) TestLocksAreScopedByKey() {
	ctx := context.Background()

	releaseA, err := s.locker.Acquire(ctx, "record-a")
	s.Require().NoError(err)
	defer releaseA()

	// A different record's lock is not contended.
	releaseB, err := s.locker.Acquire(ctx, "record-b")
	s.Require().NoError(err)
	releaseB()
}

func (s *LockerIntegrationSuite) TestContendedLockSerializes() {
	ctx := context.Background()

	const workers = 8
	var inCritical atomic.Int32
	var maxInCritical atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.locker.Acquire(ctx, "record-hot")
			if err != nil {
				return
			}
			defer release()

			now := inCritical.Add(1)
			if current := maxInCritical.Load(); now > current {
				maxInCritical.CompareAndSwap(current, now)
			}
			time.Sleep(10 * time.Millisecond)
			inCritical.Add(-1)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), maxInCritical.Load())
}

func (s *LockerIntegrationSuite) TestStaleReleaseDoesNotUnlockNewHolder() {
	ctx := context.Background()

	shortLocker := platformredis.NewLocker(s.client, 100*time.Millisecond)

	staleRelease, err := shortLocker.Acquire(ctx, "record-ttl")
	s.Require().NoError(err)

	// Let the first holder's TTL lapse, then take the lock as a new holder.
	time.Sleep(150 * time.Millisecond)
	release, err := s.locker.Acquire(ctx, "record-ttl")
	s.Require().NoError(err)
	defer release()

	// The stale holder's release must not free the new holder's lock.
	staleRelease()
	acquireCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = s.locker.Acquire(acquireCtx, "record-ttl")
	s.Error(err)
}
