package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/octmg/octmg/pkg/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRunRequestRepository implements RunRequestRepository using GORM.
type GormRunRequestRepository struct {
	db *gorm.DB
}

// NewGormRunRequestRepository creates a new GormRunRequestRepository.
func NewGormRunRequestRepository(db *gorm.DB) *GormRunRequestRepository {
	return &GormRunRequestRepository{db: db}
}

// GetPendingRuns retrieves runs queued but not yet started.
func (r *GormRunRequestRepository) GetPendingRuns(ctx context.Context, limit int) ([]*model.RunRequest, error) {
	var rows []GormRunRequest

	err := r.db.WithContext(ctx).
		Where("status = ?", model.RunStatusPending).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to query pending runs: %w", err)
	}

	result := make([]*model.RunRequest, 0, len(rows))
	for _, row := range rows {
		m, err := row.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to decode run %d: %w", row.ID, err)
		}
		result = append(result, m)
	}

	return result, nil
}

// GetRunByID retrieves a run by its numeric ID.
func (r *GormRunRequestRepository) GetRunByID(ctx context.Context, id int64) (*model.RunRequest, error) {
	var row GormRunRequest

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return row.ToModel()
}

// GetRunByUUID retrieves a run by its UUID.
func (r *GormRunRequestRepository) GetRunByUUID(ctx context.Context, uuid string) (*model.RunRequest, error) {
	var row GormRunRequest

	err := r.db.WithContext(ctx).Where("run_uuid = ?", uuid).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %s", uuid)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return row.ToModel()
}

// UpdateRunStatus updates a run's lifecycle status.
func (r *GormRunRequestRepository) UpdateRunStatus(ctx context.Context, id int64, status model.RunStatus) error {
	result := r.db.WithContext(ctx).
		Model(&GormRunRequest{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return fmt.Errorf("failed to update run status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %d", id)
	}

	return nil
}

// UpdateRunStatusWithInfo updates status plus a human-readable detail.
func (r *GormRunRequestRepository) UpdateRunStatusWithInfo(ctx context.Context, id int64, status model.RunStatus, info string) error {
	result := r.db.WithContext(ctx).
		Model(&GormRunRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"status_info": info,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update run status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %d", id)
	}

	return nil
}

// LockRunForExecution attempts to lock a run for execution using FOR UPDATE.
func (r *GormRunRequestRepository) LockRunForExecution(ctx context.Context, id int64) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row GormRunRequest

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", id, model.RunStatusPending).
			First(&row).Error

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gorm.ErrRecordNotFound
			}
			return err
		}

		return tx.Model(&GormRunRequest{}).
			Where("id = ?", id).
			Update("status", model.RunStatusRunning).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock run: %w", err)
	}

	return true, nil
}

// GormRunResultRepository implements RunResultRepository using GORM.
type GormRunResultRepository struct {
	db *gorm.DB
}

// NewGormRunResultRepository creates a new GormRunResultRepository.
func NewGormRunResultRepository(db *gorm.DB) *GormRunResultRepository {
	return &GormRunResultRepository{db: db}
}

// SaveResult saves a run result to the database.
func (r *GormRunResultRepository) SaveResult(ctx context.Context, result *model.RunResult) error {
	row, err := NewGormRunResult(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save run result: %w", err)
	}

	return nil
}

// GetResultByRunUUID retrieves the result for a run.
func (r *GormRunResultRepository) GetResultByRunUUID(ctx context.Context, runUUID string) (*model.RunResult, error) {
	var row GormRunResult

	err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("result not found for run: %s", runUUID)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return row.ToModel()
}

// UpdateResult updates an existing run result.
func (r *GormRunResultRepository) UpdateResult(ctx context.Context, result *model.RunResult) error {
	row, err := NewGormRunResult(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&GormRunResult{}).
		Where("run_uuid = ?", result.RunUUID).
		Updates(map[string]interface{}{
			"converged":      row.Converged,
			"cycles":         row.Cycles,
			"init_residual":  row.InitResidual,
			"final_residual": row.FinalResidual,
			"history":        row.History,
			"checkpoint_key": row.CheckpointKey,
			"completed_at":   row.CompletedAt,
		})

	if res.Error != nil {
		return fmt.Errorf("failed to update result: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("result not found for run: %s", result.RunUUID)
	}

	return nil
}

// GormSuggestionRepository implements SuggestionRepository using GORM.
type GormSuggestionRepository struct {
	db *gorm.DB
}

// NewGormSuggestionRepository creates a new GormSuggestionRepository.
func NewGormSuggestionRepository(db *gorm.DB) *GormSuggestionRepository {
	return &GormSuggestionRepository{db: db}
}

// SaveSuggestions saves multiple tuning suggestions to the database.
func (r *GormSuggestionRepository) SaveSuggestions(ctx context.Context, suggestions []model.TuningSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range suggestions {
			if s.IsEmpty() {
				continue
			}

			record := NewGormTuningSuggestion(&s)

			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to insert suggestion: %w", err)
			}
		}

		return nil
	})
}

// GetSuggestionsByRunUUID retrieves suggestions for a run.
func (r *GormSuggestionRepository) GetSuggestionsByRunUUID(ctx context.Context, runUUID string) ([]model.TuningSuggestion, error) {
	var records []GormTuningSuggestion

	err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}

	suggestions := make([]model.TuningSuggestion, len(records))
	for i, rec := range records {
		suggestions[i] = rec.ToModel()
	}

	return suggestions, nil
}
