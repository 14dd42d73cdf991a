package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	storemodel "dealradar/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HasSentNotification 查询某 notification_id 是否已有 SENT 记录（去重窗口判断用）。
func (s *Store) HasSentNotification(ctx context.Context, notificationID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("store 未初始化")
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&storemodel.NotificationModel{}).
		Where("notification_id = ? AND status = ?", notificationID, StatusSent).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimNotification 以 insert-if-absent 方式认领一个 notification_id（状态 PENDING）。
// 唯一索引落下的冲突意味着别的 run 已持有该通知：
//   - 对方已 SENT 或 PENDING 未超时 → ErrAlreadyExists；
//   - 对方 FAILED 或 PENDING 已超时（崩溃残留）→ 接管该行重试。
func (s *Store) ClaimNotification(ctx context.Context, rec Notification) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	if rec.NotificationID == "" {
		return fmt.Errorf("notification_id 必填")
	}
	now := time.Now()
	m := storemodel.NotificationModel{
		NotificationID: rec.NotificationID,
		ProductID:      rec.ProductID,
		OldPrice:       rec.OldPrice,
		NewPrice:       rec.NewPrice,
		Currency:       rec.Currency,
		Status:         StatusPending,
		ClaimedAt:      now,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 冲突：检查既有记录能否接管。
	var existing storemodel.NotificationModel
	err := s.db.WithContext(ctx).
		Where("notification_id = ?", rec.NotificationID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 冲突行在读取前被删掉，按占用处理（核心不删通知，只能是外部干预）。
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	stale := existing.Status == StatusFailed ||
		(existing.Status == StatusPending && now.Sub(existing.ClaimedAt) > s.claimTTL)
	if !stale {
		return ErrAlreadyExists
	}
	takeover := s.db.WithContext(ctx).Model(&storemodel.NotificationModel{}).
		Where("notification_id = ? AND status = ? AND claimed_at = ?",
			rec.NotificationID, existing.Status, existing.ClaimedAt).
		Updates(map[string]interface{}{
			"status":     StatusPending,
			"old_price":  rec.OldPrice,
			"new_price":  rec.NewPrice,
			"claimed_at": now,
			"updated_at": now,
		})
	if takeover.Error != nil {
		return takeover.Error
	}
	if takeover.RowsAffected == 0 {
		// 并发接管被别人抢先。
		return ErrAlreadyExists
	}
	return nil
}

// FinalizeNotification 将已认领的通知定格为 SENT 或 FAILED，并记录各通道结果。
func (s *Store) FinalizeNotification(ctx context.Context, notificationID, status string, channels []ChannelResult, sentAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store 未初始化")
	}
	if status != StatusSent && status != StatusFailed {
		return fmt.Errorf("非法通知状态: %s", status)
	}
	payload := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if len(channels) > 0 {
		raw, err := json.Marshal(channels)
		if err != nil {
			return err
		}
		payload["channels_json"] = datatypes.JSON(raw)
	}
	if status == StatusSent {
		payload["sent_at"] = sentAt
	}
	res := s.db.WithContext(ctx).Model(&storemodel.NotificationModel{}).
		Where("notification_id = ?", notificationID).
		Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetNotification 读取单条通知记录（测试与 HTTP 查询用）。
func (s *Store) GetNotification(ctx context.Context, notificationID string) (Notification, error) {
	if s == nil || s.db == nil {
		return Notification{}, fmt.Errorf("store 未初始化")
	}
	var m storemodel.NotificationModel
	err := s.db.WithContext(ctx).Where("notification_id = ?", notificationID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, err
	}
	rec := Notification{
		NotificationID: m.NotificationID,
		ProductID:      m.ProductID,
		OldPrice:       m.OldPrice,
		NewPrice:       m.NewPrice,
		Currency:       m.Currency,
		Status:         m.Status,
		ClaimedAt:      m.ClaimedAt,
		SentAt:         m.SentAt,
	}
	if len(m.Channels) > 0 {
		_ = json.Unmarshal(m.Channels, &rec.Channels)
	}
	return rec, nil
}
