package store

import (
	"context"
	"fmt"
	"time"

	storemodel "dealradar/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddSpend 向 (date_bucket, api_name) 累加一笔实际消费。
// 累加发生在 upsert 的 SQL 表达式里，多个 worker 并发提交也不会丢增量。
func (s *Store) AddSpend(ctx context.Context, dateBucket, apiName string, amount decimal.Decimal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	if dateBucket == "" || apiName == "" {
		return fmt.Errorf("spend 记账缺少 bucket/api")
	}
	if amount.IsNegative() {
		return fmt.Errorf("spend 金额不能为负: %s", amount)
	}
	m := storemodel.SpendModel{
		DateBucket: dateBucket,
		APIName:    apiName,
		Amount:     amount,
		Calls:      1,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date_bucket"}, {Name: "api_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":     gorm.Expr("spend_ledger.amount + excluded.amount"),
				"calls":      gorm.Expr("spend_ledger.calls + 1"),
				"updated_at": time.Now(),
			}),
		}).
		Create(&m).Error
}

// SpendTotal 返回某 bucket 内全部 API 的累计消费。
func (s *Store) SpendTotal(ctx context.Context, dateBucket string) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, fmt.Errorf("store 未初始化")
	}
	var models []storemodel.SpendModel
	if err := s.db.WithContext(ctx).Where("date_bucket = ?", dateBucket).Find(&models).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, m := range models {
		total = total.Add(m.Amount)
	}
	return total, nil
}

// SpendByAPI 返回某 bucket 内按 API 拆分的消费（运维查询用）。
func (s *Store) SpendByAPI(ctx context.Context, dateBucket string) (map[string]decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	var models []storemodel.SpendModel
	if err := s.db.WithContext(ctx).Where("date_bucket = ?", dateBucket).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(models))
	for _, m := range models {
		out[m.APIName] = m.Amount
	}
	return out, nil
}
