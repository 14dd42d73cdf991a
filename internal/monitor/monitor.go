package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealradar/internal/budget"
	"dealradar/internal/dispatch"
	"dealradar/internal/extract"
	"dealradar/internal/filter"
	"dealradar/internal/logger"
	"dealradar/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// 中文说明：
// 批处理编排器：一轮 run = 对每个产品走 抽取 → 判定 → [投递] → 落库。
// 单个产品任何一步失败都只记进该产品的 outcome，绝不中断整轮；
// 整轮失败只有一种情况——产品列表本身读不出来。

type OutcomeKind string

const (
	OutcomeNotified         OutcomeKind = "notified"
	OutcomeSuppressed       OutcomeKind = "suppressed"
	OutcomeNoChange         OutcomeKind = "no_change"
	OutcomeExtractionFailed OutcomeKind = "extraction_failed"
	OutcomeBudgetSkipped    OutcomeKind = "budget_skipped"
	OutcomeStoreFailed      OutcomeKind = "store_failed"
)

// Outcome 单个产品在本轮的结局。
type Outcome struct {
	ProductID string      `json:"product_id"`
	Kind      OutcomeKind `json:"outcome"`
	OldPrice  string      `json:"old_price,omitempty"`
	NewPrice  string      `json:"new_price,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// Summary 一轮 run 的结构化汇总，直接作为手动触发接口的响应体。
type Summary struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	Total            int             `json:"total"`
	Notified         int             `json:"notified"`
	Suppressed       int             `json:"suppressed"`
	NoChange         int             `json:"no_change"`
	ExtractionFailed int             `json:"extraction_failed"`
	BudgetSkipped    int             `json:"budget_skipped"`
	StoreFailed      int             `json:"store_failed"`
	Spend            decimal.Decimal `json:"spend"`
	Outcomes         []Outcome       `json:"outcomes"`
}

type Monitor struct {
	store      *store.Store
	extractor  *extract.Extractor
	detector   *filter.Detector
	dispatcher *dispatch.Dispatcher
	budget     *budget.Tracker
	workers    int
}

func New(st *store.Store, ex *extract.Extractor, det *filter.Detector, disp *dispatch.Dispatcher, tracker *budget.Tracker, workers int) *Monitor {
	if workers <= 0 {
		workers = 4
	}
	return &Monitor{store: st, extractor: ex, detector: det, dispatcher: disp, budget: tracker, workers: workers}
}

// Run 执行一轮巡检并持久化汇总。
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	startedAt := time.Now()
	logger.Infof("[Monitor] run %s 开始", runID)

	products, err := m.store.ListProducts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("读取产品列表失败: %w", err)
	}

	bucket := m.budget.Bucket()
	spendBefore, err := m.store.SpendTotal(ctx, bucket)
	if err != nil {
		logger.Warnf("[Monitor] 读取期初消费失败: %v", err)
		spendBefore = decimal.Zero
	}

	// 每个产品固定占一个下标，worker 间无共享写
	outcomes := make([]Outcome, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, p := range products {
		i, p := i, p
		g.Go(func() error {
			outcomes[i] = m.processProduct(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	spendAfter, err := m.store.SpendTotal(ctx, bucket)
	if err != nil {
		logger.Warnf("[Monitor] 读取期末消费失败: %v", err)
		spendAfter = spendBefore
	}

	summary := Summary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Total:      len(products),
		Spend:      spendAfter.Sub(spendBefore),
		Outcomes:   outcomes,
	}
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeNotified:
			summary.Notified++
		case OutcomeSuppressed:
			summary.Suppressed++
		case OutcomeNoChange:
			summary.NoChange++
		case OutcomeExtractionFailed:
			summary.ExtractionFailed++
		case OutcomeBudgetSkipped:
			summary.BudgetSkipped++
		case OutcomeStoreFailed:
			summary.StoreFailed++
		}
	}

	if err := m.persistRun(ctx, summary); err != nil {
		logger.Errorf("[Monitor] run 汇总入库失败: %v", err)
	}
	m.logSummary(summary)
	return summary, nil
}

func (m *Monitor) processProduct(ctx context.Context, p store.Product) (out Outcome) {
	out = Outcome{ProductID: p.ProductID}
	defer func() {
		if r := recover(); r != nil {
			out.Kind = OutcomeExtractionFailed
			out.Detail = fmt.Sprintf("panic: %v", r)
			logger.Errorf("[Monitor] %s 处理 panic: %v", p.ProductID, r)
		}
	}()

	obs, err := m.extractor.Extract(ctx, p)
	if err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			out.Kind = OutcomeBudgetSkipped
			logger.Infof("[Monitor] %s 预算拒绝，本轮跳过", p.ProductID)
			return out
		}
		out.Kind = OutcomeExtractionFailed
		out.Detail = err.Error()
		logger.Warnf("[Monitor] %s 抽取失败: %v", p.ProductID, err)
		return out
	}

	dec, err := m.detector.Decide(ctx, p, obs)
	if err != nil {
		out.Kind = OutcomeStoreFailed
		out.Detail = err.Error()
		return out
	}

	switch dec.Kind {
	case filter.KindSuppress:
		out.Kind = OutcomeSuppressed
		out.Detail = string(dec.Reason)
		// 低置信噪声不写回基准价，避免下一轮把噪声当真
		if dec.Reason == filter.ReasonLowConfidence {
			return out
		}
	case filter.KindNoChange:
		out.Kind = OutcomeNoChange
	case filter.KindNotify:
		result, derr := m.dispatcher.Dispatch(ctx, p, dec)
		out.OldPrice = dec.OldPrice.StringFixed(2)
		out.NewPrice = dec.NewPrice.StringFixed(2)
		switch result {
		case dispatch.ResultSent:
			out.Kind = OutcomeNotified
		case dispatch.ResultPartiallyFailed:
			out.Kind = OutcomeNotified
			out.Detail = "部分通道投递失败"
		case dispatch.ResultSuppressed:
			out.Kind = OutcomeSuppressed
			out.Detail = string(filter.ReasonDuplicate)
		default:
			out.Kind = OutcomeStoreFailed
			if derr != nil {
				out.Detail = derr.Error()
			}
		}
	}

	if err := m.store.UpdatePrice(ctx, p.ProductID, obs.Price, obs.Currency, obs.ObservedAt); err != nil {
		out.Kind = OutcomeStoreFailed
		out.Detail = err.Error()
		logger.Errorf("[Monitor] %s 价格写回失败: %v", p.ProductID, err)
	}
	return out
}

func (m *Monitor) persistRun(ctx context.Context, s Summary) error {
	raw, err := json.Marshal(s.Outcomes)
	if err != nil {
		return err
	}
	return m.store.InsertRun(ctx, store.RunRecord{
		RunID:            s.RunID,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		Total:            s.Total,
		Notified:         s.Notified,
		Suppressed:       s.Suppressed,
		NoChange:         s.NoChange,
		ExtractionFailed: s.ExtractionFailed,
		BudgetSkipped:    s.BudgetSkipped,
		StoreFailed:      s.StoreFailed,
		Spend:            s.Spend,
		Outcomes:         raw,
	})
}

func (m *Monitor) logSummary(s Summary) {
	var b strings.Builder
	fmt.Fprintf(&b, "========== run %s ==========\n", s.RunID)
	fmt.Fprintf(&b, "产品总数: %d, 用时: %s\n", s.Total, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "通知: %d, 抑制: %d, 无变化: %d\n", s.Notified, s.Suppressed, s.NoChange)
	fmt.Fprintf(&b, "抽取失败: %d, 预算跳过: %d, 持久化失败: %d\n", s.ExtractionFailed, s.BudgetSkipped, s.StoreFailed)
	fmt.Fprintf(&b, "本轮消费: $%s", s.Spend.StringFixed(4))
	logger.InfoBlock(b.String())
}
