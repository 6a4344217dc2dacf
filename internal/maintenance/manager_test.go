package maintenance_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agency-site/internal/maintenance"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var purged, synced atomic.Int32

	m := maintenance.NewManager(maintenance.Config{Logger: logger},
		maintenance.Job{Name: "purge", Run: func(ctx context.Context) error {
			purged.Add(1)
			return nil
		}},
		maintenance.Job{Name: "sync", Run: func(ctx context.Context) error {
			synced.Add(1)
			return errors.New("database locked")
		}},
	)

	m.RunOnce(context.Background())

	assert.Equal(t, int32(1), purged.Load())
	assert.Equal(t, int32(1), synced.Load())

	var failed []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			failed = append(failed, e.Data["job"].(string))
		}
	}
	assert.Equal(t, []string{"sync"}, failed)
}

func TestJobsRunOnInterval(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var runs atomic.Int32

	m := maintenance.NewManager(maintenance.Config{Interval: 5 * time.Millisecond, Logger: logger},
		maintenance.Job{Name: "tick", Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}},
	)
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	m.Shutdown()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestJobTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var deadline atomic.Bool

	m := maintenance.NewManager(maintenance.Config{JobTimeout: 10 * time.Millisecond, Logger: logger},
		maintenance.Job{Name: "slow", Run: func(ctx context.Context) error {
			<-ctx.Done()
			deadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
			return ctx.Err()
		}},
	)

	m.RunOnce(context.Background())
	assert.True(t, deadline.Load())
}

func TestShutdownWithoutStart(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := maintenance.NewManager(maintenance.Config{Logger: logger})
	m.Shutdown()
}
