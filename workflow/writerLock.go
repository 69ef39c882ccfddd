package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrWriterLockHeld        = errors.New("ledger data dir is already open for writing")
	ErrWriterLockUnavailable = errors.New("service not ready (redis lock not initialized)")
)

const writerLockTTL = 30 * time.Second

// Locker is the part of redislock the writer lock needs.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// WriterLock keeps a second process from opening the same data dir as
// writer. It refreshes itself until Release is called.
type WriterLock struct {
	Key string

	lock   *redislock.Lock
	logger *logrus.Logger
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func writerLockKey(host, dataDir string) string {
	return fmt.Sprintf("ledger-writer:%s:%s", host, dataDir)
}

// AcquireWriterLock obtains the writer lock for dataDir on host using the
// global redis lock client.
func AcquireWriterLock(ctx context.Context, host, dataDir string) (*WriterLock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogError(config.GetLogger(), "workflow", "AcquireWriterLock", "Redis lock not initialized", dataDir, ErrWriterLockUnavailable)
		return nil, ErrWriterLockUnavailable
	}
	return acquireWriterLock(ctx, locker, host, dataDir)
}

func acquireWriterLock(ctx context.Context, locker Locker, host, dataDir string) (*WriterLock, error) {
	logger := config.GetLogger()
	key := writerLockKey(host, dataDir)
	lock, err := locker.Obtain(ctx, key, writerLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, "workflow", "AcquireWriterLock", "Could not obtain writer lock", key, err)
		return nil, ErrWriterLockHeld
	} else if err != nil {
		config.LogError(logger, "workflow", "AcquireWriterLock", "Error obtaining writer lock", key, err)
		return nil, err
	}

	wl := &WriterLock{
		Key:    key,
		lock:   lock,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go wl.keepAlive()
	return wl, nil
}

func (wl *WriterLock) keepAlive() {
	defer close(wl.done)
	ticker := time.NewTicker(writerLockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-wl.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wl.lock.Refresh(ctx, writerLockTTL, nil)
			cancel()
			if err != nil {
				wl.logger.WithFields(logrus.Fields{
					"field": "WriterLock",
					"key":   wl.Key,
				}).Error("writer lock refresh failed: " + err.Error())
			}
		}
	}
}

// Release stops refreshing and gives the lock up. Safe to call more than once.
func (wl *WriterLock) Release(ctx context.Context) error {
	var err error
	wl.once.Do(func() {
		close(wl.stop)
		<-wl.done
		err = wl.lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			err = nil
		}
	})
	return err
}
