package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProductModel 映射 tracked products 表。
// 价格字段用 decimal 文本列存储，避免浮点漂移。
type ProductModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ProductID     string `gorm:"column:product_id;uniqueIndex;size:64;not null"`
	Name          string `gorm:"column:name;size:256"`
	Query         string `gorm:"column:query;size:512"`
	URL           string `gorm:"column:url;size:1024"`
	Currency      string `gorm:"column:currency;size:8"`
	TargetPrice   decimal.NullDecimal `gorm:"column:target_price;type:numeric"`
	LastPrice     decimal.NullDecimal `gorm:"column:last_price;type:numeric"`
	LastCheckedAt *time.Time          `gorm:"column:last_checked_at"`
	Email         string              `gorm:"column:email;size:256"`
	Phone         string              `gorm:"column:phone;size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ProductModel) TableName() string { return "products" }

// NotificationModel 通知记录表。notification_id 上的唯一索引就是
// “至多一条 SENT” 保证的落点：claim 走 insert-or-ignore。
type NotificationModel struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"`
	NotificationID string          `gorm:"column:notification_id;uniqueIndex;size:128;not null"`
	ProductID      string          `gorm:"column:product_id;index;size:64;not null"`
	OldPrice       decimal.Decimal `gorm:"column:old_price;type:numeric"`
	NewPrice       decimal.Decimal `gorm:"column:new_price;type:numeric"`
	Currency       string          `gorm:"column:currency;size:8"`
	Status         string          `gorm:"column:status;size:16;not null"`
	Channels       datatypes.JSON  `gorm:"column:channels_json"`
	ClaimedAt      time.Time       `gorm:"column:claimed_at"`
	SentAt         *time.Time      `gorm:"column:sent_at"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (NotificationModel) TableName() string { return "notifications" }

// SpendModel 按 (date_bucket, api_name) 聚合的消费台账。
// 累加通过 upsert 的 amount = amount + excluded.amount 完成，
// 不做读-改-写。
type SpendModel struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	DateBucket string          `gorm:"column:date_bucket;size:16;not null;uniqueIndex:idx_spend_bucket_api"`
	APIName    string          `gorm:"column:api_name;size:64;not null;uniqueIndex:idx_spend_bucket_api"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric;not null"`
	Calls      int             `gorm:"column:calls;not null"`
	UpdatedAt  time.Time
}

func (SpendModel) TableName() string { return "spend_ledger" }

// PricePointModel 价格历史，供报表画折线。
type PricePointModel struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	ProductID  string          `gorm:"column:product_id;index;size:64;not null"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric;not null"`
	Currency   string          `gorm:"column:currency;size:8"`
	ObservedAt time.Time       `gorm:"column:observed_at;index"`
}

func (PricePointModel) TableName() string { return "price_points" }

// RunModel 每轮巡检的汇总。outcome 明细整体存 JSON。
type RunModel struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	RunID            string          `gorm:"column:run_id;uniqueIndex;size:64;not null"`
	StartedAt        time.Time       `gorm:"column:started_at"`
	FinishedAt       time.Time       `gorm:"column:finished_at"`
	Total            int             `gorm:"column:total"`
	Notified         int             `gorm:"column:notified"`
	Suppressed       int             `gorm:"column:suppressed"`
	NoChange         int             `gorm:"column:no_change"`
	ExtractionFailed int             `gorm:"column:extraction_failed"`
	BudgetSkipped    int             `gorm:"column:budget_skipped"`
	StoreFailed      int             `gorm:"column:store_failed"`
	Spend            decimal.Decimal `gorm:"column:spend;type:numeric"`
	Outcomes         datatypes.JSON  `gorm:"column:outcomes_json"`
	CreatedAt        time.Time
}

func (RunModel) TableName() string { return "runs" }
