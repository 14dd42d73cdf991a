package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealradar/internal/logger"

	"github.com/shopspring/decimal"
)

// ErrBudgetExceeded 表示当期预算已耗尽。调用方应跳过该产品，而不是重试。
var ErrBudgetExceeded = errors.New("budget: 当期预算已耗尽")

// Ledger 是 Tracker 依赖的持久台账（由 store 实现）。
type Ledger interface {
	AddSpend(ctx context.Context, dateBucket, apiName string, amount decimal.Decimal) error
	SpendTotal(ctx context.Context, dateBucket string) (decimal.Decimal, error)
}

// Tracker 在每次计费调用前做同步预算闸门：
// 已提交消费（持久台账）+ 在途预留（本进程内存）+ 本次预估 不得超过上限。
// 预留在 Commit/Release 时归还；Commit 按实际金额入账，预估偏差随一轮运行自我修正。
type Tracker struct {
	ledger  Ledger
	ceiling decimal.Decimal

	mu       sync.Mutex
	reserved decimal.Decimal

	nowFn func() time.Time
}

func NewTracker(ledger Ledger, ceiling decimal.Decimal) *Tracker {
	return &Tracker{
		ledger:  ledger,
		ceiling: ceiling,
		nowFn:   time.Now,
	}
}

// Bucket 返回当前预算周期的 key（UTC 日期）。周期翻转由 key 变化自然完成。
func (t *Tracker) Bucket() string {
	return t.nowFn().UTC().Format("2006-01-02")
}

// Reserve 在发起计费调用前占位。返回 ErrBudgetExceeded 即拒绝。
func (t *Tracker) Reserve(ctx context.Context, apiName string, estimated decimal.Decimal) error {
	if t == nil || t.ledger == nil {
		return fmt.Errorf("budget tracker 未初始化")
	}
	if estimated.IsNegative() {
		return fmt.Errorf("预估费用不能为负: %s", estimated)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	committed, err := t.ledger.SpendTotal(ctx, t.Bucket())
	if err != nil {
		return err
	}
	if committed.Add(t.reserved).Add(estimated).GreaterThan(t.ceiling) {
		logger.Debugf("预算拒绝 api=%s est=%s committed=%s reserved=%s ceiling=%s",
			apiName, estimated, committed, t.reserved, t.ceiling)
		return ErrBudgetExceeded
	}
	t.reserved = t.reserved.Add(estimated)
	return nil
}

// Commit 调用完成后入账实际费用并归还预留。无论调用成败都要提交——
// 按次计费的接口失败同样收费。
func (t *Tracker) Commit(ctx context.Context, apiName string, estimated, actual decimal.Decimal) error {
	if t == nil || t.ledger == nil {
		return fmt.Errorf("budget tracker 未初始化")
	}
	t.release(estimated)
	if actual.IsNegative() {
		actual = decimal.Zero
	}
	if err := t.ledger.AddSpend(ctx, t.Bucket(), apiName, actual); err != nil {
		// 台账写失败只告警：宁可少记一笔，也不能让记账失败打断产品处理。
		logger.Errorf("spend 记账失败 api=%s amount=%s: %v", apiName, actual, err)
		return err
	}
	return nil
}

// Release 归还一笔从未发生的预留（例如拿到预留后断路器拒绝了调用）。
func (t *Tracker) Release(estimated decimal.Decimal) {
	if t == nil {
		return
	}
	t.release(estimated)
}

func (t *Tracker) release(estimated decimal.Decimal) {
	t.mu.Lock()
	t.reserved = t.reserved.Sub(estimated)
	if t.reserved.IsNegative() {
		t.reserved = decimal.Zero
	}
	t.mu.Unlock()
}

// Remaining 返回当期剩余预算（已扣除在途预留），允许为负值展示超支。
func (t *Tracker) Remaining(ctx context.Context) (decimal.Decimal, error) {
	if t == nil || t.ledger == nil {
		return decimal.Zero, fmt.Errorf("budget tracker 未初始化")
	}
	t.mu.Lock()
	reserved := t.reserved
	t.mu.Unlock()
	committed, err := t.ledger.SpendTotal(ctx, t.Bucket())
	if err != nil {
		return decimal.Zero, err
	}
	return t.ceiling.Sub(committed).Sub(reserved), nil
}
