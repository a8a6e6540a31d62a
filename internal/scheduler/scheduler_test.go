package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/octmg/octmg/internal/scheduler/source"
	"github.com/octmg/octmg/pkg/model"
	"github.com/octmg/octmg/pkg/utils"
)

// MockRunProcessor is a mock implementation of RunProcessor.
type MockRunProcessor struct {
	mock.Mock
	processedCount int32
}

func (m *MockRunProcessor) Process(ctx context.Context, run *Run) error {
	atomic.AddInt32(&m.processedCount, 1)
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunProcessor) GetProcessedCount() int32 {
	return atomic.LoadInt32(&m.processedCount)
}

func TestScheduler_New(t *testing.T) {
	processor := &MockRunProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)

	// Create a simple aggregator with no sources for testing
	aggregator := source.NewAggregator(nil, 10, logger)

	t.Run("WithDefaultConfig", func(t *testing.T) {
		s := New(nil, aggregator, processor, nil)
		require.NotNil(t, s)
		assert.Equal(t, 5, s.config.WorkerCount)
		assert.Equal(t, 2*time.Second, s.config.PollInterval)
	})

	t.Run("WithCustomConfig", func(t *testing.T) {
		cfg := &SchedulerConfig{
			PollInterval:  5 * time.Second,
			WorkerCount:   10,
			PrioritySlots: 3,
			RunBatchSize:  20,
		}
		s := New(cfg, aggregator, processor, nil)
		require.NotNil(t, s)
		assert.Equal(t, 10, s.config.WorkerCount)
		assert.Equal(t, 5*time.Second, s.config.PollInterval)
	})
}

func TestScheduler_Stats(t *testing.T) {
	processor := &MockRunProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	cfg := &SchedulerConfig{
		WorkerCount: 5,
	}

	s := New(cfg, aggregator, processor, nil)

	stats := s.Stats()
	// Before Start(), workerPool is empty, so ActiveWorkers = WorkerCount - 0 = WorkerCount
	assert.Equal(t, 5, stats.ActiveWorkers)
	assert.Equal(t, 5, stats.TotalWorkers)
	assert.False(t, stats.Running)
}

func TestScheduler_ShouldAcceptRun(t *testing.T) {
	processor := &MockRunProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	cfg := &SchedulerConfig{
		WorkerCount:   5,
		PrioritySlots: 2,
		PollInterval:  100 * time.Millisecond,
		RunBatchSize:  5,
	}

	s := New(cfg, aggregator, processor, logger)

	// Need to initialize worker pool like Start() does
	for i := 0; i < cfg.WorkerCount; i++ {
		s.workerPool <- struct{}{}
	}

	t.Run("HighPriorityRun", func(t *testing.T) {
		run := &Run{Request: &model.RunRequest{}, Priority: 1}
		assert.True(t, s.shouldAcceptRun(run))
	})

	t.Run("NormalPriorityRun", func(t *testing.T) {
		run := &Run{Request: &model.RunRequest{}, Priority: 0}
		assert.True(t, s.shouldAcceptRun(run))
	})
}

func TestScheduler_StartStop(t *testing.T) {
	processor := &MockRunProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	cfg := &SchedulerConfig{
		PollInterval:  100 * time.Millisecond,
		WorkerCount:   2,
		PrioritySlots: 1,
		RunBatchSize:  5,
	}

	s := New(cfg, aggregator, processor, logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Start scheduler
	err := s.Start(ctx)
	require.NoError(t, err)

	stats := s.Stats()
	assert.True(t, stats.Running)

	// Wait a bit
	time.Sleep(200 * time.Millisecond)

	// Stop scheduler
	cancel()
	s.Stop()

	stats = s.Stats()
	assert.False(t, stats.Running)
}

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 2, cfg.PrioritySlots)
	assert.Equal(t, 10, cfg.RunBatchSize)
}

func TestScheduler_ConvertEventToRun(t *testing.T) {
	processor := &MockRunProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	s := New(nil, aggregator, processor, logger)

	req := &model.RunRequest{
		ID:         1,
		RunUUID:    "uuid-123",
		Mode:       model.CycleModeVCycle,
		Dim:        3,
		LowestLvl:  0,
		HighestLvl: 2, // IsQuickRun: HighestLvl-LowestLvl <= 2
	}

	event := source.NewRunEvent(req, source.SourceTypeDB, "test-source")
	run := s.convertEventToRun(event)

	assert.Equal(t, int64(1), run.Request.ID)
	assert.Equal(t, "uuid-123", run.Request.RunUUID)
	assert.Equal(t, model.CycleModeVCycle, run.Request.Mode)
	assert.Equal(t, 1, run.Priority) // quick run -> high priority
}

func TestScheduler_ConvertEventToRun_Priority(t *testing.T) {
	processor := &MockRunProcessor{}
	logger := utils.NewDefaultLogger(utils.LevelDebug, io.Discard)
	aggregator := source.NewAggregator(nil, 10, logger)

	s := New(nil, aggregator, processor, logger)

	t.Run("HighPriorityFromQuickRun", func(t *testing.T) {
		req := &model.RunRequest{ID: 1, RunUUID: "uuid-123", LowestLvl: 0, HighestLvl: 1}
		event := source.NewRunEvent(req, source.SourceTypeDB, "test-source")
		run := s.convertEventToRun(event)
		assert.Equal(t, 1, run.Priority)
	})

	t.Run("NormalPriorityFromDeepRun", func(t *testing.T) {
		req := &model.RunRequest{ID: 2, RunUUID: "uuid-456", LowestLvl: 0, HighestLvl: 6}
		event := source.NewRunEvent(req, source.SourceTypeDB, "test-source")
		run := s.convertEventToRun(event)
		assert.Equal(t, 0, run.Priority)
	})
}
