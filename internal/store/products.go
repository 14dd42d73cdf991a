package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storemodel "dealradar/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListProducts 返回全部被跟踪的产品。
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	var models []storemodel.ProductModel
	if err := s.db.WithContext(ctx).Order("product_id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(models))
	for _, m := range models {
		out = append(out, productModelToRecord(m))
	}
	return out, nil
}

// GetProduct 按 product_id 查询。
func (s *Store) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.db == nil {
		return Product{}, fmt.Errorf("store 未初始化")
	}
	var m storemodel.ProductModel
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return productModelToRecord(m), nil
}

// UpsertProduct 注册或更新产品（HTTP 注册面与 watchlist 装载共用）。
// 运行期字段（last_price/last_checked_at）不会被覆盖。
func (s *Store) UpsertProduct(ctx context.Context, p Product) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	p.ProductID = strings.TrimSpace(p.ProductID)
	if p.ProductID == "" {
		return fmt.Errorf("product_id 必填")
	}
	if strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.Query) == "" && strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("产品 %s 缺少 name/query/url", p.ProductID)
	}
	m := productRecordToModel(p)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":         gorm.Expr("excluded.name"),
				"query":        gorm.Expr("excluded.query"),
				"url":          gorm.Expr("excluded.url"),
				"currency":     gorm.Expr("excluded.currency"),
				"target_price": gorm.Expr("excluded.target_price"),
				"email":        gorm.Expr("excluded.email"),
				"phone":        gorm.Expr("excluded.phone"),
				"updated_at":   time.Now(),
			}),
		}).
		Create(&m).Error
}

// DeleteProduct 删除产品（仅供外部注册面调用，核心流水线不删）。
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	res := s.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&storemodel.ProductModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePrice 在一次成功抽取后写回最新价格与检查时间，并追加价格历史点。
// 价格历史写失败只影响报表，不作为持久化失败上抛。
func (s *Store) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal, currency string, checkedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.ProductModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"last_price":      price,
			"currency":        currency,
			"last_checked_at": checkedAt,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	point := storemodel.PricePointModel{
		ProductID:  productID,
		Price:      price,
		Currency:   currency,
		ObservedAt: checkedAt,
	}
	_ = s.db.WithContext(ctx).Create(&point).Error
	return nil
}

// PricePoint 报表用的历史价格点。
type PricePoint struct {
	Price      decimal.Decimal
	Currency   string
	ObservedAt time.Time
}

// ListPricePoints 按时间升序返回某产品最近 limit 条价格历史。
func (s *Store) ListPricePoints(ctx context.Context, productID string, limit int) ([]PricePoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	if limit <= 0 {
		limit = 200
	}
	var models []storemodel.PricePointModel
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]PricePoint, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		out = append(out, PricePoint{Price: m.Price, Currency: m.Currency, ObservedAt: m.ObservedAt})
	}
	return out, nil
}

func productModelToRecord(m storemodel.ProductModel) Product {
	rec := Product{
		ProductID:     m.ProductID,
		Name:          m.Name,
		Query:         m.Query,
		URL:           m.URL,
		Currency:      m.Currency,
		LastCheckedAt: m.LastCheckedAt,
		Email:         m.Email,
		Phone:         m.Phone,
	}
	if m.TargetPrice.Valid {
		v := m.TargetPrice.Decimal
		rec.TargetPrice = &v
	}
	if m.LastPrice.Valid {
		v := m.LastPrice.Decimal
		rec.LastPrice = &v
	}
	return rec
}

func productRecordToModel(p Product) storemodel.ProductModel {
	m := storemodel.ProductModel{
		ProductID:     p.ProductID,
		Name:          strings.TrimSpace(p.Name),
		Query:         strings.TrimSpace(p.Query),
		URL:           strings.TrimSpace(p.URL),
		Currency:      strings.ToUpper(strings.TrimSpace(p.Currency)),
		LastCheckedAt: p.LastCheckedAt,
		Email:         strings.TrimSpace(p.Email),
		Phone:         strings.TrimSpace(p.Phone),
	}
	if p.TargetPrice != nil {
		m.TargetPrice = decimal.NullDecimal{Decimal: *p.TargetPrice, Valid: true}
	}
	if p.LastPrice != nil {
		m.LastPrice = decimal.NullDecimal{Decimal: *p.LastPrice, Valid: true}
	}
	return m
}
