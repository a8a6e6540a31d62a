package source

import (
	"context"
	"sync"
	"time"

	"github.com/octmg/octmg/internal/repository"
	"github.com/octmg/octmg/pkg/model"
	"github.com/octmg/octmg/pkg/utils"
)

// SourceTypeDB is the source type constant for database source.
const SourceTypeDB SourceType = "database"

func init() {
	// Register the database source strategy
	Register(SourceTypeDB, NewDatabaseSource)
}

// DatabaseOptions holds database source specific configuration.
type DatabaseOptions struct {
	// PollInterval is how often to poll for new runs.
	PollInterval time.Duration

	// BatchSize is the maximum number of runs to fetch per poll.
	BatchSize int
}

// DefaultDatabaseOptions returns the default options.
func DefaultDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		PollInterval: 2 * time.Second,
		BatchSize:    10,
	}
}

// DatabaseSource implements TaskSource for database-based run fetching.
type DatabaseSource struct {
	name    string
	options *DatabaseOptions
	logger  utils.Logger

	runRepo repository.RunRequestRepository

	runChan chan *RunEvent
	stopCh  chan struct{}

	mu      sync.RWMutex
	running bool
}

// NewDatabaseSource creates a new database source from configuration.
func NewDatabaseSource(cfg *SourceConfig) (TaskSource, error) {
	opts := &DatabaseOptions{
		PollInterval: cfg.GetDuration("poll_interval", 2*time.Second),
		BatchSize:    cfg.GetInt("batch_size", 10),
	}

	return &DatabaseSource{
		name:    cfg.Name,
		options: opts,
		runChan: make(chan *RunEvent, opts.BatchSize*2),
		stopCh:  make(chan struct{}),
	}, nil
}

// NewDatabaseSourceWithDeps creates a new database source with explicit dependencies.
// This is useful for production use where repositories are already initialized.
func NewDatabaseSourceWithDeps(name string, opts *DatabaseOptions, runRepo repository.RunRequestRepository, logger utils.Logger) *DatabaseSource {
	if opts == nil {
		opts = DefaultDatabaseOptions()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &DatabaseSource{
		name:    name,
		options: opts,
		logger:  logger,
		runRepo: runRepo,
		runChan: make(chan *RunEvent, opts.BatchSize*2),
		stopCh:  make(chan struct{}),
	}
}

// SetRepository sets the run request repository.
// This must be called before Start if using the factory-created source.
func (s *DatabaseSource) SetRepository(runRepo repository.RunRequestRepository) {
	s.runRepo = runRepo
}

// SetLogger sets the logger.
func (s *DatabaseSource) SetLogger(logger utils.Logger) {
	s.logger = logger
}

// Type returns the source type.
func (s *DatabaseSource) Type() SourceType {
	return SourceTypeDB
}

// Name returns the source instance name.
func (s *DatabaseSource) Name() string {
	return s.name
}

// Start starts the database polling loop.
func (s *DatabaseSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if s.runRepo == nil {
		s.mu.Unlock()
		return nil // No repository configured, skip
	}

	s.running = true
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("Database source %s starting with poll_interval=%v, batch_size=%d",
			s.name, s.options.PollInterval, s.options.BatchSize)
	}

	go s.pollLoop(ctx)
	return nil
}

// Stop stops the database source.
func (s *DatabaseSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	return nil
}

// Tasks returns the run event channel.
func (s *DatabaseSource) Tasks() <-chan *RunEvent {
	return s.runChan
}

// Ack acknowledges a run has been processed successfully.
// For database source, this updates the run status to completed.
func (s *DatabaseSource) Ack(ctx context.Context, event *RunEvent) error {
	if s.runRepo == nil || event.Run == nil {
		return nil
	}
	return s.runRepo.UpdateRunStatus(ctx, event.Run.ID, model.RunStatusCompleted)
}

// Nack indicates a run's processing failed.
// For database source, this updates the run status to failed.
func (s *DatabaseSource) Nack(ctx context.Context, event *RunEvent, reason string) error {
	if s.runRepo == nil || event.Run == nil {
		return nil
	}
	return s.runRepo.UpdateRunStatusWithInfo(ctx, event.Run.ID, model.RunStatusFailed, reason)
}

// HealthCheck checks the database connection.
func (s *DatabaseSource) HealthCheck(ctx context.Context) error {
	if s.runRepo == nil {
		return nil
	}
	// Try to fetch a single run as health check
	_, err := s.runRepo.GetPendingRuns(ctx, 1)
	return err
}

// pollLoop continuously polls the database for pending runs.
func (s *DatabaseSource) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.options.PollInterval)
	defer ticker.Stop()

	// Initial poll
	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll fetches pending runs and emits them to the run channel.
func (s *DatabaseSource) poll(ctx context.Context) {
	if s.runRepo == nil {
		return
	}

	runs, err := s.runRepo.GetPendingRuns(ctx, s.options.BatchSize)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Database source %s failed to fetch runs: %v", s.name, err)
		}
		return
	}

	for _, run := range runs {
		// Try to lock the run
		locked, err := s.runRepo.LockRunForExecution(ctx, run.ID)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("Database source %s failed to lock run %d: %v", s.name, run.ID, err)
			}
			continue
		}
		if !locked {
			continue // Run already locked by another instance
		}

		// Create and emit run event
		event := NewRunEvent(run, SourceTypeDB, s.name).
			WithMetadata("locked_at", time.Now().Format(time.RFC3339))

		select {
		case s.runChan <- event:
			if s.logger != nil {
				s.logger.Debug("Database source %s emitted run %s", s.name, run.RunUUID)
			}
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
			// Channel full: release the lock so the run is picked up in a later poll
			if err := s.runRepo.UpdateRunStatus(ctx, run.ID, model.RunStatusPending); err != nil && s.logger != nil {
				s.logger.Error("Database source %s failed to release run %d: %v", s.name, run.ID, err)
			}
			if s.logger != nil {
				s.logger.Warn("Database source %s run channel full, run %d will retry", s.name, run.ID)
			}
		}
	}
}
