package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealradar/internal/filter"
	"dealradar/internal/gateway/notifier"
	"dealradar/internal/logger"
	"dealradar/internal/store"

	"golang.org/x/sync/errgroup"
)

// 中文说明：
// 通知分发：认领 → 逐通道投递 → 定格。
// 认领是唯一索引上的条件插入，两个重叠 run 撞上同一个 notification_id
// 时只有一个能发出去——至多一条 SENT 的不变量靠这里守住。

type Result string

const (
	ResultSent            Result = "SENT"
	ResultPartiallyFailed Result = "PARTIALLY_FAILED"
	ResultFailed          Result = "FAILED"
	ResultSuppressed      Result = "SUPPRESSED"
)

// NotificationStore 分发器需要的 store 子集。
type NotificationStore interface {
	ClaimNotification(ctx context.Context, rec store.Notification) error
	FinalizeNotification(ctx context.Context, notificationID, status string, channels []store.ChannelResult, sentAt time.Time) error
}

type Dispatcher struct {
	store    NotificationStore
	channels []notifier.Channel
}

func NewDispatcher(st NotificationStore, channels ...notifier.Channel) *Dispatcher {
	return &Dispatcher{store: st, channels: channels}
}

// Dispatch 执行一次 Notify 判定的投递。
// 返回 ResultSuppressed 表示该通知已被其他 run 持有，不是错误。
func (d *Dispatcher) Dispatch(ctx context.Context, p store.Product, dec filter.Decision) (Result, error) {
	if dec.Kind != filter.KindNotify {
		return "", fmt.Errorf("dispatch 只接受 NOTIFY 判定，得到 %s", dec.Kind)
	}

	rec := store.Notification{
		NotificationID: dec.NotificationID,
		ProductID:      p.ProductID,
		OldPrice:       dec.OldPrice,
		NewPrice:       dec.NewPrice,
		Currency:       p.Currency,
	}
	if err := d.store.ClaimNotification(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			logger.Infof("[Dispatch] %s 通知 %s 已被占用，抑制", p.ProductID, dec.NotificationID)
			return ResultSuppressed, nil
		}
		return ResultFailed, fmt.Errorf("认领通知失败: %w", err)
	}

	msg := notifier.Alert{
		ProductName: p.Name,
		OldPrice:    dec.OldPrice,
		NewPrice:    dec.NewPrice,
		Currency:    p.Currency,
		URL:         p.URL,
	}.Render()

	results := d.sendAll(ctx, p, msg)

	sent, failed := 0, 0
	for _, r := range results {
		if r.OK {
			sent++
		} else {
			failed++
		}
	}

	status := store.StatusSent
	if sent == 0 {
		status = store.StatusFailed
	}
	if err := d.store.FinalizeNotification(ctx, dec.NotificationID, status, results, time.Now()); err != nil {
		// 投递已经发生，定格失败只告警：PENDING 行超时后可被下一轮接管
		logger.Errorf("[Dispatch] 定格通知 %s 失败: %v", dec.NotificationID, err)
	}

	switch {
	case sent == 0:
		return ResultFailed, fmt.Errorf("全部通道投递失败 (%d)", failed)
	case failed > 0:
		return ResultPartiallyFailed, nil
	default:
		return ResultSent, nil
	}
}

// sendAll 各通道独立投递，一个通道失败不影响其他通道。
func (d *Dispatcher) sendAll(ctx context.Context, p store.Product, msg notifier.Message) []store.ChannelResult {
	var mu sync.Mutex
	var results []store.ChannelResult
	g, gctx := errgroup.WithContext(ctx)

	for _, ch := range d.channels {
		ch := ch
		recipient := recipientFor(ch.Name(), p)
		if recipient == "" {
			continue
		}
		g.Go(func() error {
			err := ch.Send(gctx, recipient, msg)
			r := store.ChannelResult{Channel: ch.Name(), OK: err == nil}
			if err != nil {
				r.Error = err.Error()
				logger.Warnf("[Dispatch] %s 通道 %s 投递失败: %v", p.ProductID, ch.Name(), err)
			} else {
				logger.Infof("[Dispatch] %s 通道 %s 投递成功", p.ProductID, ch.Name())
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(results) == 0 {
		results = append(results, store.ChannelResult{
			Channel: "none", OK: false, Error: "产品未配置任何可用收件方式",
		})
	}
	return results
}

func recipientFor(channel string, p store.Product) string {
	switch channel {
	case "email":
		return p.Email
	case "sms":
		return p.Phone
	default:
		return ""
	}
}
