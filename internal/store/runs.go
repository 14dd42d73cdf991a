package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	storemodel "dealradar/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunRecord 一轮巡检的持久化形态。Outcomes 是 monitor 侧序列化好的明细。
type RunRecord struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Total            int
	Notified         int
	Suppressed       int
	NoChange         int
	ExtractionFailed int
	BudgetSkipped    int
	StoreFailed      int
	Spend            decimal.Decimal
	Outcomes         json.RawMessage
}

// InsertRun 落一条 run 汇总。
func (s *Store) InsertRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	if rec.RunID == "" {
		return fmt.Errorf("run_id 必填")
	}
	m := storemodel.RunModel{
		RunID:            rec.RunID,
		StartedAt:        rec.StartedAt,
		FinishedAt:       rec.FinishedAt,
		Total:            rec.Total,
		Notified:         rec.Notified,
		Suppressed:       rec.Suppressed,
		NoChange:         rec.NoChange,
		ExtractionFailed: rec.ExtractionFailed,
		BudgetSkipped:    rec.BudgetSkipped,
		StoreFailed:      rec.StoreFailed,
		Spend:            rec.Spend,
	}
	if len(rec.Outcomes) > 0 {
		m.Outcomes = datatypes.JSON(rec.Outcomes)
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListRuns 按时间倒序返回最近 limit 条 run 汇总。
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	if limit <= 0 {
		limit = 20
	}
	var models []storemodel.RunModel
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		out = append(out, runModelToRecord(m))
	}
	return out, nil
}

// GetRun 按 run_id 查询。
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, fmt.Errorf("store 未初始化")
	}
	var m storemodel.RunModel
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	return runModelToRecord(m), nil
}

func runModelToRecord(m storemodel.RunModel) RunRecord {
	rec := RunRecord{
		RunID:            m.RunID,
		StartedAt:        m.StartedAt,
		FinishedAt:       m.FinishedAt,
		Total:            m.Total,
		Notified:         m.Notified,
		Suppressed:       m.Suppressed,
		NoChange:         m.NoChange,
		ExtractionFailed: m.ExtractionFailed,
		BudgetSkipped:    m.BudgetSkipped,
		StoreFailed:      m.StoreFailed,
		Spend:            m.Spend,
	}
	if len(m.Outcomes) > 0 {
		rec.Outcomes = json.RawMessage(m.Outcomes)
	}
	return rec
}
