// Package service owns the long-lived monitor: store, account pool,
// orchestrator, scheduler and the metrics listener.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"followwatch/pkg/config"
	"followwatch/pkg/credentials"
	"followwatch/pkg/logger"
	"followwatch/pkg/metrics"
	"followwatch/pkg/monitor"
	"followwatch/pkg/notify"
	"followwatch/pkg/pool"
	"followwatch/pkg/scheduler"
	"followwatch/pkg/scraper"
	"followwatch/pkg/session"
	"followwatch/pkg/store"
)

// Deps are optional collaborators. Nil fields are built from the config.
type Deps struct {
	Store    store.Store
	Secrets  store.SecretResolver
	Scrapers *scraper.Registry
	Notifier notify.Notifier
	Logger   logger.Logger
}

// Service is the running monitor
type Service struct {
	cfg       *config.Config
	store     store.Store
	ownsStore bool
	pool      *pool.Pool
	orch      *monitor.Orchestrator
	sched     *scheduler.Scheduler
	log       logger.Logger

	mu        sync.Mutex
	metrics   *metrics.Server
	startedAt time.Time
	running   bool
}

// OpenStore opens the configured sqlite database. Account secrets are
// resolved through secrets, or the default credential chain when nil.
func OpenStore(cfg *config.Config, secrets store.SecretResolver) (*store.SQLiteStore, error) {
	if secrets == nil {
		secrets = credentials.NewDefaultChain()
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// NewScrapers builds the platform scrapers with shared session storage
func NewScrapers(cfg config.ScraperConfig, log logger.Logger) (*scraper.Registry, error) {
	sessions, err := session.NewManager(cfg.CookiesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session directory: %w", err)
	}
	opts := scraper.OptionsFromConfig(cfg)
	return scraper.NewRegistry(
		scraper.NewInstagram(opts, sessions, log),
		scraper.NewTikTok(opts, sessions, log),
	), nil
}

// New assembles a service. It does not start anything.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	svc := &Service{cfg: cfg, log: log.WithField("component", "service")}

	svc.store = deps.Store
	if svc.store == nil {
		st, err := OpenStore(cfg, deps.Secrets)
		if err != nil {
			return nil, err
		}
		svc.store = st
		svc.ownsStore = true
	}

	scrapers := deps.Scrapers
	if scrapers == nil {
		var err error
		if scrapers, err = NewScrapers(cfg.Scraper, log); err != nil {
			svc.closeStore()
			return nil, err
		}
	}

	notifier := deps.Notifier
	if notifier == nil {
		var err error
		if notifier, err = notify.New(cfg.Notifications, log); err != nil {
			svc.closeStore()
			return nil, err
		}
	}

	svc.pool = pool.New(svc.store, scrapers.Platforms(), log)
	svc.orch = monitor.NewOrchestrator(svc.store, svc.pool, scrapers, notifier, monitor.Options{
		Workers:       cfg.Monitor.Workers,
		ScrapeTimeout: cfg.Monitor.ScrapeTimeout,
	}, log)
	svc.sched = scheduler.New(svc.orch, log)
	return svc, nil
}

// Start loads the account roster, starts the metrics listener and arms
// the schedule
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("service already running")
	}

	if err := s.pool.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("initial account roster load failed")
	}
	if s.pool.Capacity() == 0 {
		s.log.Warn("no active scraper accounts; checks will fail until one is added")
	}

	s.metrics = metrics.StartServer(s.cfg.Metrics.Addr, s.log)
	if err := s.sched.Start(s.cfg.Monitor.ScanInterval, s.cfg.Monitor.InitialDelay); err != nil {
		_ = s.metrics.Shutdown(ctx)
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	s.running = true
	s.startedAt = time.Now()
	logger.LogComponentStart(s.log, "service", map[string]interface{}{
		"interval": s.cfg.Monitor.ScanInterval,
		"workers":  s.cfg.Monitor.Workers,
		"accounts": s.pool.Capacity(),
	})
	return nil
}

// Stop waits for in-flight work, then releases resources. A service is
// not restartable.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sched.Stop()

	var errs []error
	if err := s.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	s.metrics = nil
	if err := s.closeStore(); err != nil {
		errs = append(errs, err)
	}

	if s.running {
		logger.LogComponentStop(s.log, "service", time.Since(s.startedAt))
	}
	s.running = false
	return errors.Join(errs...)
}

func (s *Service) closeStore() error {
	if !s.ownsStore {
		return nil
	}
	s.ownsStore = false
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// CheckNow queues an on-demand check of targetID
func (s *Service) CheckNow(targetID int64) error {
	return s.sched.TriggerNow(targetID)
}

// Check runs an on-demand check and waits for its outcome
func (s *Service) Check(ctx context.Context, targetID int64) monitor.Outcome {
	if err := s.pool.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("account roster refresh failed")
	}
	return s.orch.RunOne(ctx, targetID)
}

// RunBatch runs one batch right away, outside the schedule
func (s *Service) RunBatch(ctx context.Context) monitor.BatchReport {
	return s.orch.RunBatch(ctx)
}

// Store returns the service's store
func (s *Service) Store() store.Store {
	return s.store
}
