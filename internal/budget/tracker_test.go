package budget

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger 内存台账，行为与 store 的原子累加一致。
type memLedger struct {
	mu      sync.Mutex
	buckets map[string]decimal.Decimal
}

func newMemLedger() *memLedger {
	return &memLedger{buckets: map[string]decimal.Decimal{}}
}

func (l *memLedger) AddSpend(_ context.Context, bucket, _ string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[bucket] = l.buckets[bucket].Add(amount)
	return nil
}

func (l *memLedger) SpendTotal(_ context.Context, bucket string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buckets[bucket], nil
}

func TestTracker_ReserveDenied(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, decimal.NewFromFloat(0.05))
	ctx := context.Background()

	// 0.01 * 5 = 0.05 正好打满
	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Reserve(ctx, "search", decimal.NewFromFloat(0.01)))
	}
	err := tr.Reserve(ctx, "search", decimal.NewFromFloat(0.01))
	assert.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestTracker_CommitReleasesReservation(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, decimal.NewFromFloat(0.02))
	ctx := context.Background()
	est := decimal.NewFromFloat(0.01)

	require.NoError(t, tr.Reserve(ctx, "search", est))
	require.NoError(t, tr.Reserve(ctx, "llm", est))
	assert.ErrorIs(t, tr.Reserve(ctx, "search", est), ErrBudgetExceeded)

	// 实际费用低于预估：提交后释放的空间允许继续预留
	require.NoError(t, tr.Commit(ctx, "search", est, decimal.NewFromFloat(0.005)))
	assert.NoError(t, tr.Reserve(ctx, "search", decimal.NewFromFloat(0.005)))
}

func TestTracker_ReleaseWithoutCommit(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, decimal.NewFromFloat(0.01))
	ctx := context.Background()
	est := decimal.NewFromFloat(0.01)

	require.NoError(t, tr.Reserve(ctx, "search", est))
	assert.ErrorIs(t, tr.Reserve(ctx, "search", est), ErrBudgetExceeded)

	// 断路器拒绝调用的场景：预留归还，不入账
	tr.Release(est)
	assert.NoError(t, tr.Reserve(ctx, "search", est))
	total, _ := ledger.SpendTotal(ctx, tr.Bucket())
	assert.True(t, total.IsZero())
}

// 并发预留下，已提交 + 在途预留不得超过上限。
func TestTracker_ConcurrentReserveNeverExceedsCeiling(t *testing.T) {
	ledger := newMemLedger()
	ceiling := decimal.NewFromFloat(1.0)
	tr := NewTracker(ledger, ceiling)
	ctx := context.Background()
	cost := decimal.NewFromFloat(0.01)

	var wg sync.WaitGroup
	var granted int64
	var mu sync.Mutex
	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.Reserve(ctx, "search", cost); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
				_ = tr.Commit(ctx, "search", cost, cost)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, granted, int64(100), "300 次尝试最多放行 100 笔 0.01")
	total, err := ledger.SpendTotal(ctx, tr.Bucket())
	require.NoError(t, err)
	assert.True(t, total.LessThanOrEqual(ceiling), "累计消费 %s 超过上限 %s", total, ceiling)
}

func TestTracker_Remaining(t *testing.T) {
	ledger := newMemLedger()
	tr := NewTracker(ledger, decimal.NewFromFloat(1.0))
	ctx := context.Background()

	require.NoError(t, tr.Reserve(ctx, "search", decimal.NewFromFloat(0.3)))
	remaining, err := tr.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.7", remaining.String())

	require.NoError(t, tr.Commit(ctx, "search", decimal.NewFromFloat(0.3), decimal.NewFromFloat(0.2)))
	remaining, err = tr.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.8", remaining.String())
}
