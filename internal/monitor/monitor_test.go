package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dealradar/internal/budget"
	"dealradar/internal/dispatch"
	"dealradar/internal/extract"
	"dealradar/internal/filter"
	"dealradar/internal/gateway/notifier"
	"dealradar/internal/gateway/search"
	"dealradar/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchStub 返回可控的 Tavily 风格搜索结果。
type searchStub struct {
	mu      sync.Mutex
	results []search.Result
}

func (s *searchStub) set(results []search.Result) {
	s.mu.Lock()
	s.results = results
	s.mu.Unlock()
}

func (s *searchStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"results": s.results})
	}
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []notifier.Message
}

func (c *recordingChannel) Name() string { return "email" }

func (c *recordingChannel) Send(_ context.Context, _ string, msg notifier.Message) error {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type harness struct {
	store   *store.Store
	stub    *searchStub
	channel *recordingChannel
	monitor *Monitor
}

func newHarness(t *testing.T, ceilingUSD float64) *harness {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	stub := &searchStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	tracker := budget.NewTracker(st, decimal.NewFromFloat(ceilingUSD))
	client := search.NewClient(search.Options{BaseURL: srv.URL, APIKey: "test"})
	// 纯摘要模式：测试里不依赖模型
	ex := extract.New(client, nil, tracker, extract.Costs{
		Search: decimal.NewFromFloat(0.01),
		LLM:    decimal.NewFromFloat(0.002),
	}, true)
	det := filter.NewDetector(st, 24*time.Hour, decimal.NewFromFloat(10.0))
	ch := &recordingChannel{}
	disp := dispatch.NewDispatcher(st, ch)

	return &harness{
		store:   st,
		stub:    stub,
		channel: ch,
		monitor: New(st, ex, det, disp, tracker, 2),
	}
}

func productPage(price string) []search.Result {
	return []search.Result{{
		Title:   "Sony WH-1000XM5 Headphones | Target",
		URL:     "https://www.target.com/p/sony-wh-1000xm5",
		Content: "Wireless noise canceling headphones. Now $" + price + " with free shipping.",
	}}
}

func seedProduct(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.UpsertProduct(context.Background(), store.Product{
		ProductID: "sony-xm5",
		Name:      "Sony WH-1000XM5",
		Query:     "sony wh-1000xm5 price",
		Currency:  "USD",
		Email:     "buyer@example.com",
	}))
}

func TestRun_FirstObservationThenDrop(t *testing.T) {
	h := newHarness(t, 5.0)
	ctx := context.Background()
	seedProduct(t, h.store)

	// 第一轮：首次观察，只记价不通知
	h.stub.set(productPage("399.00"))
	sum, err := h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.NoChange)
	assert.Equal(t, 0, sum.Notified)
	assert.Equal(t, 0, h.channel.count())

	p, err := h.store.GetProduct(ctx, "sony-xm5")
	require.NoError(t, err)
	require.NotNil(t, p.LastPrice)
	assert.True(t, p.LastPrice.Equal(decimal.NewFromInt(399)))

	// 第二轮：降价，触发通知
	h.stub.set(productPage("348.00"))
	sum, err = h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Notified)
	assert.Equal(t, 1, h.channel.count())
	assert.Contains(t, h.channel.sent[0].Body, "Price dropped from $399.00 to $348.00")

	// 第三轮：涨回原价，只记价
	h.stub.set(productPage("399.00"))
	sum, err = h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.NoChange)

	// 第四轮：再次降到同一价位，窗口内去重抑制，不再投递
	h.stub.set(productPage("348.00"))
	sum, err = h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Suppressed)
	assert.Equal(t, 1, h.channel.count())
}

func TestRun_BudgetExhausted(t *testing.T) {
	// 上限低于一次搜索的单价，所有产品都被预算闸门拒绝
	h := newHarness(t, 0.001)
	ctx := context.Background()
	seedProduct(t, h.store)
	h.stub.set(productPage("399.00"))

	sum, err := h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.BudgetSkipped)
	assert.Equal(t, 0, sum.ExtractionFailed)
	assert.True(t, sum.Spend.IsZero())
}

func TestRun_NoProducts(t *testing.T) {
	h := newHarness(t, 5.0)
	sum, err := h.monitor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Total)
	assert.Empty(t, sum.Outcomes)
}

func TestRun_ExtractionFailureIsolated(t *testing.T) {
	h := newHarness(t, 5.0)
	ctx := context.Background()
	seedProduct(t, h.store)
	require.NoError(t, h.store.UpsertProduct(ctx, store.Product{
		ProductID: "macbook",
		Name:      "MacBook Air M3",
		Currency:  "USD",
		Email:     "buyer@example.com",
	}))

	// 搜索结果里只有一个产品能命中价格，另一个过滤后为空
	h.stub.set(productPage("399.00"))
	sum, err := h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	// 两个产品拿到同一份结果，都能抽到价：都是首次观察
	assert.Equal(t, 2, sum.NoChange)

	before, err := h.store.GetProduct(ctx, "sony-xm5")
	require.NoError(t, err)
	require.NotNil(t, before.LastPrice)
	require.NotNil(t, before.LastCheckedAt)

	// 搜索端清空结果：过滤后为空，抽取失败但整轮照常完成
	h.stub.set(nil)
	sum, err = h.monitor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ExtractionFailed)

	// 抽取失败的轮次不能动已记录的价格和检查时间
	after, err := h.store.GetProduct(ctx, "sony-xm5")
	require.NoError(t, err)
	require.NotNil(t, after.LastPrice)
	assert.True(t, after.LastPrice.Equal(*before.LastPrice))
	require.NotNil(t, after.LastCheckedAt)
	assert.True(t, after.LastCheckedAt.Equal(*before.LastCheckedAt))
}

func TestRun_PersistsRunRecord(t *testing.T) {
	h := newHarness(t, 5.0)
	ctx := context.Background()
	seedProduct(t, h.store)
	h.stub.set(productPage("399.00"))

	sum, err := h.monitor.Run(ctx)
	require.NoError(t, err)

	rec, err := h.store.GetRun(ctx, sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Total)
	assert.Equal(t, 1, rec.NoChange)

	var outcomes []Outcome
	require.NoError(t, json.Unmarshal(rec.Outcomes, &outcomes))
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeNoChange, outcomes[0].Kind)
}
