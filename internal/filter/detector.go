package filter

import (
	"context"
	"fmt"
	"time"

	"dealradar/internal/extract"
	"dealradar/internal/logger"
	"dealradar/internal/pkg/money"
	"dealradar/internal/store"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 变化判定器：对"这次观察值要不要发通知"做纯决策。
// 除重复检查（委托给 store）外不做任何 I/O，规则顺序即优先级。

type Kind int

const (
	KindNoChange Kind = iota
	KindSuppress
	KindNotify
)

func (k Kind) String() string {
	switch k {
	case KindNotify:
		return "NOTIFY"
	case KindSuppress:
		return "SUPPRESS"
	default:
		return "NO_CHANGE"
	}
}

type SuppressReason string

const (
	ReasonLowConfidence SuppressReason = "LOW_CONFIDENCE"
	ReasonDuplicate     SuppressReason = "DUPLICATE"
)

// Decision 判定结果。Kind==KindNotify 时 Old/New/NotificationID 有效。
type Decision struct {
	Kind           Kind
	Reason         SuppressReason
	OldPrice       decimal.Decimal
	NewPrice       decimal.Decimal
	NotificationID string
}

// SentChecker 只需要 store 的重复查询能力。
type SentChecker interface {
	HasSentNotification(ctx context.Context, notificationID string) (bool, error)
}

type Detector struct {
	checker       SentChecker
	dedupWindow   time.Duration
	volatilityPct decimal.Decimal
}

func NewDetector(checker SentChecker, dedupWindow time.Duration, volatilityPct decimal.Decimal) *Detector {
	if dedupWindow <= 0 {
		dedupWindow = 24 * time.Hour
	}
	return &Detector{checker: checker, dedupWindow: dedupWindow, volatilityPct: volatilityPct}
}

// NotificationKey 由产品、价格分桶和时间窗派生确定性通知 ID：
// 同一窗口内重复出现的同幅降价得到同一个 ID，在唯一索引上自然碰撞。
func NotificationKey(productID string, price decimal.Decimal, observedAt time.Time, window time.Duration) string {
	windowStart := observedAt.UTC().Truncate(window)
	return fmt.Sprintf("%s:%s:%d", productID, price.StringFixed(2), windowStart.Unix())
}

// Decide 按规则顺序给出判定。
func (d *Detector) Decide(ctx context.Context, p store.Product, obs extract.Observation) (Decision, error) {
	last, hasLast := lastPrice(p)

	// 规则 1：低置信观察值偏离上次价格过多，按噪声处理
	if obs.Confidence == extract.ConfidenceLow && hasLast {
		diff := money.DiffPct(last, obs.Price)
		if diff.GreaterThan(d.volatilityPct) {
			logger.Debugf("[Filter] %s 低置信波动 %.1f%% > %s%%，抑制",
				p.ProductID, diff.InexactFloat64(), d.volatilityPct)
			return Decision{Kind: KindSuppress, Reason: ReasonLowConfidence}, nil
		}
	}

	// 首次观察：只记价，不通知
	if !hasLast {
		return Decision{Kind: KindNoChange}, nil
	}

	// 规则 2：没降价且没有向下穿越目标价
	dropped := obs.Price.LessThan(last)
	crossedTarget := false
	if p.TargetPrice != nil && p.TargetPrice.IsPositive() {
		target := *p.TargetPrice
		crossedTarget = last.GreaterThan(target) && obs.Price.LessThanOrEqual(target)
	}
	if !dropped && !crossedTarget {
		return Decision{Kind: KindNoChange}, nil
	}

	// 规则 3：同窗口同价位已经通知过
	id := NotificationKey(p.ProductID, obs.Price, obs.ObservedAt, d.dedupWindow)
	seen, err := d.checker.HasSentNotification(ctx, id)
	if err != nil {
		return Decision{}, fmt.Errorf("重复检查失败: %w", err)
	}
	if seen {
		return Decision{Kind: KindSuppress, Reason: ReasonDuplicate, NotificationID: id}, nil
	}

	return Decision{
		Kind:           KindNotify,
		OldPrice:       last,
		NewPrice:       obs.Price,
		NotificationID: id,
	}, nil
}

func lastPrice(p store.Product) (decimal.Decimal, bool) {
	if p.LastPrice == nil || !p.LastPrice.IsPositive() {
		return decimal.Zero, false
	}
	return *p.LastPrice, true
}
