// Package scheduler provides solve-run scheduling and worker pool management.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/octmg/octmg/internal/scheduler/source"
	"github.com/octmg/octmg/pkg/config"
	"github.com/octmg/octmg/pkg/model"
	"github.com/octmg/octmg/pkg/utils"
)

// Run represents one solve request queued for processing by the worker pool.
type Run struct {
	Request  *model.RunRequest
	Priority int // Higher value = higher priority
}

// RunProcessor defines the interface for processing a solve run.
type RunProcessor interface {
	// Process runs the solve to completion (or failure) for one request.
	Process(ctx context.Context, run *Run) error
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval  time.Duration // How often to poll for new runs
	WorkerCount   int           // Number of concurrent workers
	PrioritySlots int           // Reserved slots for high priority runs
	RunBatchSize  int           // Max runs to fetch per poll
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval:  2 * time.Second,
		WorkerCount:   5,
		PrioritySlots: 2,
		RunBatchSize:  10,
	}
}

// FromConfig creates scheduler config from application config.
func FromConfig(cfg *config.SchedulerConfig) *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval:  time.Duration(cfg.PollInterval) * time.Second,
		WorkerCount:   cfg.WorkerCount,
		PrioritySlots: cfg.PrioritySlots,
		RunBatchSize:  cfg.TaskBatchSize,
	}
}

// Scheduler manages solve-run scheduling and the worker pool.
type Scheduler struct {
	config    *SchedulerConfig
	processor RunProcessor
	logger    utils.Logger

	// Source-based run fetching (Strategy Pattern)
	aggregator *source.Aggregator

	workerPool chan struct{} // Semaphore for worker count
	runQueue   chan *Run     // Run queue
	wg         sync.WaitGroup

	running bool
	stopCh  chan struct{}
}

// New creates a new Scheduler with a source aggregator.
func New(config *SchedulerConfig, aggregator *source.Aggregator, processor RunProcessor, logger utils.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &Scheduler{
		config:     config,
		aggregator: aggregator,
		processor:  processor,
		logger:     logger,
		workerPool: make(chan struct{}, config.WorkerCount),
		runQueue:   make(chan *Run, config.RunBatchSize*2),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler with %d workers", s.config.WorkerCount)

	s.running = true

	// Start worker goroutines
	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerPool <- struct{}{}
	}

	// Start the aggregator
	if err := s.aggregator.Start(ctx); err != nil {
		return err
	}

	// Start the source-based event loop
	go s.sourceEventLoop(ctx)

	// Start the run processing loop
	go s.processLoop(ctx)

	return nil
}

// Stop stops the scheduler gracefully.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	s.running = false
	close(s.stopCh)

	// Wait for all workers to complete
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// shouldAcceptRun determines if a run should be accepted based on priority.
func (s *Scheduler) shouldAcceptRun(run *Run) bool {
	activeWorkers := s.config.WorkerCount - len(s.workerPool)
	reservedSlots := s.config.WorkerCount - s.config.PrioritySlots

	// High priority runs can always be accepted if there's capacity
	if run.Priority > 0 {
		return activeWorkers < s.config.WorkerCount
	}

	// Normal priority runs can only use non-reserved slots
	return activeWorkers < reservedSlots
}

// processLoop processes queued runs.
func (s *Scheduler) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case run := <-s.runQueue:
			// Acquire a worker slot
			select {
			case <-s.workerPool:
				s.wg.Add(1)
				go s.processRun(ctx, run)
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}
}

// processRun processes a single run.
func (s *Scheduler) processRun(ctx context.Context, run *Run) {
	defer func() {
		s.workerPool <- struct{}{} // Release worker slot
		s.wg.Done()
	}()

	s.logger.Info("Processing run %d (UUID: %s, mode: %s)",
		run.Request.ID, run.Request.RunUUID, run.Request.Mode)

	startTime := time.Now()
	err := s.processor.Process(ctx, run)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Run %d failed after %v: %v", run.Request.ID, duration, err)
		return
	}

	s.logger.Info("Run %d completed successfully in %v", run.Request.ID, duration)
}

// sourceEventLoop receives run events from the aggregator and queues them for processing.
func (s *Scheduler) sourceEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case event, ok := <-s.aggregator.Tasks():
			if !ok {
				s.logger.Info("Aggregator channel closed")
				return
			}

			run := s.convertEventToRun(event)

			if !s.shouldAcceptRun(run) {
				s.logger.Debug("Skipping run %d due to priority constraints", run.Request.ID)
				continue
			}

			select {
			case s.runQueue <- run:
				s.logger.Info("Queued run %d (UUID: %s) from source %s/%s",
					run.Request.ID, run.Request.RunUUID, event.SourceType, event.SourceName)
			default:
				// Queue full: nack the event back to its source (the database source marks the run failed)
				s.logger.Warn("Run queue full, nacking run %d", run.Request.ID)
				if err := s.aggregator.Nack(ctx, event, "run queue full"); err != nil {
					s.logger.Error("Failed to nack event: %v", err)
				}
			}
		}
	}
}

// convertEventToRun converts a source.RunEvent to a scheduler.Run.
func (s *Scheduler) convertEventToRun(event *source.RunEvent) *Run {
	return &Run{Request: event.Run, Priority: event.Priority}
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		ActiveWorkers: s.config.WorkerCount - len(s.workerPool),
		TotalWorkers:  s.config.WorkerCount,
		QueuedRuns:    len(s.runQueue),
		Running:       s.running,
	}
}

// SchedulerStats holds scheduler statistics.
type SchedulerStats struct {
	ActiveWorkers int  `json:"active_workers"`
	TotalWorkers  int  `json:"total_workers"`
	QueuedRuns    int  `json:"queued_runs"`
	Running       bool `json:"running"`
}
