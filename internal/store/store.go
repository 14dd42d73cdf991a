package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storemodel "dealradar/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shopspring/decimal"
)

// 哨兵错误：条件写冲突与记录缺失。
var (
	ErrAlreadyExists = errors.New("store: record already exists")
	ErrNotFound      = errors.New("store: record not found")
)

// Product 是对外暴露的产品记录（与 gorm model 解耦）。
type Product struct {
	ProductID     string
	Name          string
	Query         string
	URL           string
	Currency      string
	TargetPrice   *decimal.Decimal
	LastPrice     *decimal.Decimal
	LastCheckedAt *time.Time
	Email         string
	Phone         string
}

// SearchTerm 返回定位价格用的检索词：优先 URL，其次自由检索词，最后产品名。
func (p Product) SearchTerm() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	if strings.TrimSpace(p.Query) != "" {
		return p.Query
	}
	return p.Name
}

// ChannelResult 单通道投递结果，序列化进 notifications.channels_json。
type ChannelResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Notification 通知记录。
type Notification struct {
	NotificationID string
	ProductID      string
	OldPrice       decimal.Decimal
	NewPrice       decimal.Decimal
	Currency       string
	Status         string
	Channels       []ChannelResult
	ClaimedAt      time.Time
	SentAt         *time.Time
}

// 通知状态。
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
)

// Store 基于 gorm + SQLite 的持久层。所有写操作都是单行原子的，
// 没有跨产品事务 —— 一个产品写失败不影响其余产品。
type Store struct {
	db *gorm.DB
	// PENDING 记录超过该时长视为上轮崩溃残留，允许被重新认领。
	claimTTL time.Duration
}

// Open 打开（必要时创建）数据库文件并完成迁移。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&storemodel.ProductModel{},
		&storemodel.NotificationModel{},
		&storemodel.SpendModel{},
		&storemodel.PricePointModel{},
		&storemodel.RunModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：写串行，读允许少量并发即可。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db, claimTTL: 30 * time.Minute}, nil
}

// SetClaimTTL 调整 PENDING 认领超时（测试用）。
func (s *Store) SetClaimTTL(ttl time.Duration) {
	if s != nil && ttl > 0 {
		s.claimTTL = ttl
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
