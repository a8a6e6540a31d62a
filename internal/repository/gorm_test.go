package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/octmg/octmg/pkg/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&GormRunRequest{},
		&GormRunResult{},
		&GormTuningSuggestion{},
	)
	require.NoError(t, err)

	return db
}

func TestGormRunRequestRepository_GetPendingRuns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRequestRepository(db)
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		runs, err := repo.GetPendingRuns(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("WithData", func(t *testing.T) {
		row := &GormRunRequest{
			RunUUID:    "run-uuid-1",
			Mode:       int(model.CycleModeVCycle),
			Dim:        3,
			BlockSize:  8,
			HighestLvl: 4,
			Status:     model.RunStatusPending,
			CreateTime: time.Now(),
		}
		require.NoError(t, db.Create(row).Error)

		runs, err := repo.GetPendingRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-uuid-1", runs[0].RunUUID)
	})
}

func TestGormRunRequestRepository_GetRunByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRequestRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		run, err := repo.GetRunByID(ctx, 999)
		assert.Error(t, err)
		assert.Nil(t, run)
		assert.Contains(t, err.Error(), "run not found")
	})

	t.Run("Success", func(t *testing.T) {
		row := &GormRunRequest{RunUUID: "run-uuid-2", Dim: 2, Status: model.RunStatusPending}
		require.NoError(t, db.Create(row).Error)

		result, err := repo.GetRunByID(ctx, row.ID)
		require.NoError(t, err)
		assert.Equal(t, "run-uuid-2", result.RunUUID)
	})
}

func TestGormRunRequestRepository_GetRunByUUID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRequestRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		run, err := repo.GetRunByUUID(ctx, "nonexistent")
		assert.Error(t, err)
		assert.Nil(t, run)
	})

	t.Run("Success", func(t *testing.T) {
		row := &GormRunRequest{RunUUID: "run-uuid-3", Dim: 2, Status: model.RunStatusPending}
		require.NoError(t, db.Create(row).Error)

		result, err := repo.GetRunByUUID(ctx, "run-uuid-3")
		require.NoError(t, err)
		assert.Equal(t, row.ID, result.ID)
	})
}

func TestGormRunRequestRepository_UpdateRunStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRequestRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		err := repo.UpdateRunStatus(ctx, 999, model.RunStatusCompleted)
		assert.Error(t, err)
	})

	t.Run("Success", func(t *testing.T) {
		row := &GormRunRequest{RunUUID: "run-uuid-4", Status: model.RunStatusPending}
		require.NoError(t, db.Create(row).Error)

		err := repo.UpdateRunStatus(ctx, row.ID, model.RunStatusCompleted)
		require.NoError(t, err)

		var updated GormRunRequest
		require.NoError(t, db.First(&updated, row.ID).Error)
		assert.Equal(t, model.RunStatusCompleted, updated.Status)
	})
}

func TestGormRunRequestRepository_UpdateRunStatusWithInfo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRequestRepository(db)
	ctx := context.Background()

	row := &GormRunRequest{RunUUID: "run-uuid-5", Status: model.RunStatusPending}
	require.NoError(t, db.Create(row).Error)

	err := repo.UpdateRunStatusWithInfo(ctx, row.ID, model.RunStatusFailed, "divergence detected")
	require.NoError(t, err)

	var updated GormRunRequest
	require.NoError(t, db.First(&updated, row.ID).Error)
	assert.Equal(t, model.RunStatusFailed, updated.Status)
	assert.Equal(t, "divergence detected", updated.StatusInfo)
}

func TestGormRunRequestRepository_LockRunForExecution(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunRequestRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		locked, err := repo.LockRunForExecution(ctx, 999)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("Success", func(t *testing.T) {
		row := &GormRunRequest{RunUUID: "run-uuid-6", Status: model.RunStatusPending}
		require.NoError(t, db.Create(row).Error)

		locked, err := repo.LockRunForExecution(ctx, row.ID)
		require.NoError(t, err)
		assert.True(t, locked)

		var updated GormRunRequest
		require.NoError(t, db.First(&updated, row.ID).Error)
		assert.Equal(t, model.RunStatusRunning, updated.Status)
	})
}

func TestGormRunResultRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormRunResultRepository(db)
	ctx := context.Background()

	t.Run("SaveResult_Success", func(t *testing.T) {
		result := &model.RunResult{
			RunUUID:       "result-uuid-1",
			Converged:     true,
			Cycles:        5,
			FinalResidual: 1e-8,
			History:       []model.ResidualSample{{Cycle: 1, ResidualMax: 1e-2}},
		}

		err := repo.SaveResult(ctx, result)
		require.NoError(t, err)
	})

	t.Run("GetResultByRunUUID_Success", func(t *testing.T) {
		result, err := repo.GetResultByRunUUID(ctx, "result-uuid-1")
		require.NoError(t, err)
		assert.Equal(t, "result-uuid-1", result.RunUUID)
		assert.True(t, result.Converged)
		assert.Len(t, result.History, 1)
	})

	t.Run("GetResultByRunUUID_NotFound", func(t *testing.T) {
		result, err := repo.GetResultByRunUUID(ctx, "nonexistent")
		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "result not found")
	})

	t.Run("UpdateResult_Success", func(t *testing.T) {
		result := &model.RunResult{
			RunUUID:   "result-uuid-1",
			Converged: false,
			Cycles:    9,
		}

		err := repo.UpdateResult(ctx, result)
		require.NoError(t, err)
	})

	t.Run("UpdateResult_NotFound", func(t *testing.T) {
		result := &model.RunResult{RunUUID: "nonexistent"}

		err := repo.UpdateResult(ctx, result)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "result not found")
	})
}

func TestGormSuggestionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSuggestionRepository(db)
	ctx := context.Background()

	t.Run("SaveSuggestions_Empty", func(t *testing.T) {
		err := repo.SaveSuggestions(ctx, []model.TuningSuggestion{})
		require.NoError(t, err)
	})

	t.Run("SaveSuggestions_Success", func(t *testing.T) {
		suggestions := []model.TuningSuggestion{
			{RunUUID: "sug-uuid-1", Category: "smoother", Suggestion: "switch to red-black GS"},
			{RunUUID: "sug-uuid-1", Category: "coarse", Suggestion: "raise coarse cycle budget"},
		}

		err := repo.SaveSuggestions(ctx, suggestions)
		require.NoError(t, err)
	})

	t.Run("SaveSuggestions_SkipEmpty", func(t *testing.T) {
		suggestions := []model.TuningSuggestion{
			{RunUUID: "sug-uuid-2", Suggestion: ""},
			{RunUUID: "sug-uuid-2", Suggestion: "valid suggestion"},
		}

		err := repo.SaveSuggestions(ctx, suggestions)
		require.NoError(t, err)

		result, err := repo.GetSuggestionsByRunUUID(ctx, "sug-uuid-2")
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("GetSuggestionsByRunUUID_Success", func(t *testing.T) {
		result, err := repo.GetSuggestionsByRunUUID(ctx, "sug-uuid-1")
		require.NoError(t, err)
		assert.Len(t, result, 2)
	})
}
