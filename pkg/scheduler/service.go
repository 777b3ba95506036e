package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes prediction runs older than a retention window
type Pruner interface {
	PruneExpired(retention time.Duration) (int64, error)
}

// Service runs housekeeping jobs on a cron schedule
type Service struct {
	pruner    Pruner
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	entryID   cron.EntryID

	mu      sync.Mutex
	lastRun *time.Time
	lastErr error
}

// NewService creates a scheduler that prunes runs on the given cron schedule
func NewService(pruner Pruner, schedule string, retention time.Duration) (*Service, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	return &Service{
		pruner:    pruner,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(),
	}, nil
}

// Start starts the scheduler
func (s *Service) Start() error {
	id, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	log.Printf("Run pruning scheduled (%s, retention %s)", s.schedule, s.retention)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Run pruning stopped")
}

// RunOnce prunes expired runs immediately
func (s *Service) RunOnce() {
	_, err := s.pruner.PruneExpired(s.retention)
	if err != nil {
		log.Printf("Error pruning prediction runs: %v", err)
	}

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.lastErr = err
	s.mu.Unlock()
}

// NextRun returns when pruning fires next, or nil before Start
func (s *Service) NextRun() *time.Time {
	if s.entryID == 0 {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

// LastRun returns when pruning last ran and its error
func (s *Service) LastRun() (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
