// Package maintenance runs the server's periodic housekeeping jobs.
package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one housekeeping task.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Manager runs jobs on a fixed interval until shut down.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	// RunOnce runs every job now and waits for them to finish.
	RunOnce(ctx context.Context)
}

type Config struct {
	Interval      time.Duration
	MaxConcurrent int
	JobTimeout    time.Duration
	Logger        logrus.FieldLogger
}

type manager struct {
	cfg  Config
	jobs []Job

	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewManager(cfg Config, jobs ...Job) Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &manager{
		cfg:  cfg,
		jobs: jobs,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("maintenance manager already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()
	m.cfg.Logger.WithField("interval", m.cfg.Interval).Infof("maintenance started with %d jobs", len(m.jobs))
	return nil
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("maintenance stopped")
}

func (m *manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

func (m *manager) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range m.jobs {
		select {
		case m.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer func() { <-m.sem }()
			m.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (m *manager) runJob(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JobTimeout)
	defer cancel()

	logger := m.cfg.Logger.WithField("job", job.Name)
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.WithError(err).Warn("maintenance job failed")
		return
	}
	logger.WithField("elapsed", time.Since(started).Round(time.Millisecond)).Debug("maintenance job done")
}
