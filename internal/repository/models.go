// Package repository provides database abstraction for the solver service.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/octmg/octmg/pkg/model"
)

// GormRunRequest represents the solve_run table.
type GormRunRequest struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID        string     `gorm:"column:run_uuid;type:varchar(64);uniqueIndex"`
	Mode           int        `gorm:"column:mode"`
	Dim            int        `gorm:"column:dim"`
	BlockSize      int        `gorm:"column:block_size"`
	LowestLvl      int        `gorm:"column:lowest_lvl"`
	HighestLvl     int        `gorm:"column:highest_lvl"`
	FirstNormalLvl int        `gorm:"column:first_normal_lvl"`
	MaxVCycles     int        `gorm:"column:max_vcycles"`
	ResidualTolRel float64    `gorm:"column:residual_tol_rel"`
	ResidualTolAbs float64    `gorm:"column:residual_tol_abs"`
	Status         model.RunStatus `gorm:"column:status"`
	StatusInfo     string     `gorm:"column:status_info;type:text"`
	RequestParams  JSONField  `gorm:"column:request_params;type:json"`
	CreateTime     time.Time  `gorm:"column:create_time;autoCreateTime"`
	BeginTime      *time.Time `gorm:"column:begin_time"`
	EndTime        *time.Time `gorm:"column:end_time"`
}

// TableName returns the table name for GormRunRequest.
func (GormRunRequest) TableName() string {
	return "solve_run"
}

// ToModel converts GormRunRequest to model.RunRequest.
func (r *GormRunRequest) ToModel() (*model.RunRequest, error) {
	req := &model.RunRequest{
		ID:             r.ID,
		RunUUID:        r.RunUUID,
		Mode:           model.CycleMode(r.Mode),
		Dim:            r.Dim,
		BlockSize:      r.BlockSize,
		LowestLvl:      r.LowestLvl,
		HighestLvl:     r.HighestLvl,
		FirstNormalLvl: r.FirstNormalLvl,
		MaxVCycles:     r.MaxVCycles,
		ResidualTolRel: r.ResidualTolRel,
		ResidualTolAbs: r.ResidualTolAbs,
		Status:         r.Status,
		StatusInfo:     r.StatusInfo,
		CreateTime:     r.CreateTime,
		BeginTime:      r.BeginTime,
		EndTime:        r.EndTime,
	}

	if r.RequestParams != nil {
		_ = json.Unmarshal(r.RequestParams, &req.RequestParams)
	}

	return req, nil
}

// NewGormRunRequest converts model.RunRequest to its GORM row.
func NewGormRunRequest(r *model.RunRequest) (*GormRunRequest, error) {
	paramsJSON, err := json.Marshal(r.RequestParams)
	if err != nil {
		return nil, err
	}
	return &GormRunRequest{
		ID:             r.ID,
		RunUUID:        r.RunUUID,
		Mode:           int(r.Mode),
		Dim:            r.Dim,
		BlockSize:      r.BlockSize,
		LowestLvl:      r.LowestLvl,
		HighestLvl:     r.HighestLvl,
		FirstNormalLvl: r.FirstNormalLvl,
		MaxVCycles:     r.MaxVCycles,
		ResidualTolRel: r.ResidualTolRel,
		ResidualTolAbs: r.ResidualTolAbs,
		Status:         r.Status,
		StatusInfo:     r.StatusInfo,
		RequestParams:  JSONField(paramsJSON),
		CreateTime:     r.CreateTime,
		BeginTime:      r.BeginTime,
		EndTime:        r.EndTime,
	}, nil
}

// GormRunResult represents the solve_result table.
type GormRunResult struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID       string    `gorm:"column:run_uuid;type:varchar(64);uniqueIndex"`
	Converged     bool      `gorm:"column:converged"`
	Cycles        int       `gorm:"column:cycles"`
	InitResidual  float64   `gorm:"column:init_residual"`
	FinalResidual float64   `gorm:"column:final_residual"`
	History       JSONField `gorm:"column:history;type:json"`
	CheckpointKey string    `gorm:"column:checkpoint_key;type:varchar(512)"`
	CompletedAt   time.Time `gorm:"column:completed_at"`
}

// TableName returns the table name for GormRunResult.
func (GormRunResult) TableName() string {
	return "solve_result"
}

// ToModel converts GormRunResult to model.RunResult.
func (r *GormRunResult) ToModel() (*model.RunResult, error) {
	result := &model.RunResult{
		RunUUID:       r.RunUUID,
		Converged:     r.Converged,
		Cycles:        r.Cycles,
		InitResidual:  r.InitResidual,
		FinalResidual: r.FinalResidual,
		CheckpointKey: r.CheckpointKey,
		CompletedAt:   r.CompletedAt,
	}

	if r.History != nil {
		if err := json.Unmarshal(r.History, &result.History); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// NewGormRunResult converts model.RunResult to its GORM row.
func NewGormRunResult(r *model.RunResult) (*GormRunResult, error) {
	historyJSON, err := json.Marshal(r.History)
	if err != nil {
		return nil, err
	}
	return &GormRunResult{
		RunUUID:       r.RunUUID,
		Converged:     r.Converged,
		Cycles:        r.Cycles,
		InitResidual:  r.InitResidual,
		FinalResidual: r.FinalResidual,
		History:       JSONField(historyJSON),
		CheckpointKey: r.CheckpointKey,
		CompletedAt:   r.CompletedAt,
	}, nil
}

// GormTuningSuggestion represents the tuning_suggestion table.
type GormTuningSuggestion struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID    string    `gorm:"column:run_uuid;type:varchar(64);index"`
	Category   string    `gorm:"column:category;type:varchar(64)"`
	Suggestion string    `gorm:"column:suggestion;type:text"`
	Rationale  string    `gorm:"column:rationale;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for GormTuningSuggestion.
func (GormTuningSuggestion) TableName() string {
	return "tuning_suggestion"
}

// ToModel converts GormTuningSuggestion to model.TuningSuggestion.
func (s *GormTuningSuggestion) ToModel() model.TuningSuggestion {
	return model.TuningSuggestion{
		ID:         s.ID,
		RunUUID:    s.RunUUID,
		Category:   s.Category,
		Suggestion: s.Suggestion,
		Rationale:  s.Rationale,
		CreatedAt:  s.CreatedAt,
	}
}

// NewGormTuningSuggestion converts model.TuningSuggestion to its GORM row.
func NewGormTuningSuggestion(s *model.TuningSuggestion) *GormTuningSuggestion {
	return &GormTuningSuggestion{
		RunUUID:    s.RunUUID,
		Category:   s.Category,
		Suggestion: s.Suggestion,
		Rationale:  s.Rationale,
		CreatedAt:  s.CreatedAt,
	}
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
