package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"dealradar/internal/budget"
	"dealradar/internal/gateway/provider"
	"dealradar/internal/gateway/search"
	"dealradar/internal/logger"
	"dealradar/internal/pkg/jsonutil"
	"dealradar/internal/pkg/money"
	"dealradar/internal/store"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// 中文说明：
// 价格抽取器：预算闸门 → 搜索 → 摘要快速通道 → 模型解析。
// 每一次计费调用前 Reserve、调用后 Commit（无论成败——按次计费的接口失败也收钱）。

// ErrExtractionFailed 本轮没拿到可信价格。产品在下一轮会重试。
var ErrExtractionFailed = errors.New("extract: 未能获得可信价格")

type Confidence string

const (
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceUnknown Confidence = "UNKNOWN"
)

// Observation 一次成功抽取的结果。
type Observation struct {
	Price        decimal.Decimal
	Currency     string
	Confidence   Confidence
	SourceURL    string
	SourceDomain string
	ObservedAt   time.Time
}

// Costs 每次调用的预估单价（美元）。
type Costs struct {
	Search decimal.Decimal
	LLM    decimal.Decimal
}

const (
	apiSearch = "search"
	apiLLM    = "llm"
)

// 模型输出的结构校验：字段乱给直接当 UNKNOWN 处理
const observationSchema = `{
	"type": "object",
	"properties": {
		"price":      {"type": ["string", "number"]},
		"currency":   {"type": "string"},
		"confidence": {"type": "string"},
		"source_url": {"type": "string"}
	},
	"required": ["price", "confidence"]
}`

var compiledObservationSchema = jsonschema.MustCompileString("observation.json", observationSchema)

type Extractor struct {
	searcher    *search.Client
	model       provider.ModelProvider
	budget      *budget.Tracker
	costs       Costs
	snippetOnly bool
	maxSnippets int
	nowFn       func() time.Time
}

func New(searcher *search.Client, model provider.ModelProvider, tracker *budget.Tracker, costs Costs, snippetOnly bool) *Extractor {
	return &Extractor{
		searcher:    searcher,
		model:       model,
		budget:      tracker,
		costs:       costs,
		snippetOnly: snippetOnly,
		maxSnippets: 5,
		nowFn:       time.Now,
	}
}

// Extract 对单个产品执行一次价格抽取。
// 返回 budget.ErrBudgetExceeded 表示预算拒绝（跳过，不算失败）。
func (e *Extractor) Extract(ctx context.Context, p store.Product) (Observation, error) {
	query := p.SearchTerm()
	if strings.TrimSpace(query) == "" {
		return Observation{}, fmt.Errorf("%w: 产品 %s 无可用搜索词", ErrExtractionFailed, p.ProductID)
	}

	results, err := e.doSearch(ctx, query)
	if err != nil {
		return Observation{}, err
	}

	filtered := search.FilterProductPages(results)
	if len(filtered) == 0 {
		return Observation{}, fmt.Errorf("%w: 过滤后无商品页 (query=%q)", ErrExtractionFailed, query)
	}
	if len(filtered) > e.maxSnippets {
		filtered = filtered[:e.maxSnippets]
	}

	// 摘要快速通道：命中即 HIGH，省一次模型调用
	for _, r := range filtered {
		if price, cur, ok := snippetPrice(r); ok {
			logger.Infof("[Extract] %s 摘要命中价格 %s %s (%s)", p.ProductID, cur, price, r.URL)
			return e.observation(price, cur, ConfidenceHigh, r.URL), nil
		}
	}

	if e.snippetOnly {
		return Observation{}, fmt.Errorf("%w: snippet_only 模式未命中摘要价格", ErrExtractionFailed)
	}
	if e.model == nil || !e.model.Enabled() {
		return Observation{}, fmt.Errorf("%w: 未配置抽取模型", ErrExtractionFailed)
	}
	return e.llmExtract(ctx, p, query, filtered)
}

func (e *Extractor) doSearch(ctx context.Context, query string) ([]search.Result, error) {
	if err := e.budget.Reserve(ctx, apiSearch, e.costs.Search); err != nil {
		return nil, err
	}
	results, err := e.searcher.Search(ctx, query)
	if errors.Is(err, search.ErrCircuitOpen) {
		// 调用没有发生，预留原数归还
		e.budget.Release(e.costs.Search)
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	e.budget.Commit(ctx, apiSearch, e.costs.Search, e.costs.Search)
	if err != nil {
		return nil, fmt.Errorf("%w: 搜索失败: %v", ErrExtractionFailed, err)
	}
	return results, nil
}

func (e *Extractor) llmExtract(ctx context.Context, p store.Product, query string, results []search.Result) (Observation, error) {
	if err := e.budget.Reserve(ctx, apiLLM, e.costs.LLM); err != nil {
		return Observation{}, err
	}

	userPrompt := buildUserPrompt(p.Name, query, results)
	logger.LogLLMRequest(e.model.ID(), p.ProductID, extractSystemPrompt, userPrompt, "")

	raw, err := e.model.Call(ctx, provider.ChatPayload{
		System:     extractSystemPrompt,
		User:       userPrompt,
		ExpectJSON: true,
		MaxTokens:  400,
	})
	e.budget.Commit(ctx, apiLLM, e.costs.LLM, e.costs.LLM)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: 模型调用失败: %v", ErrExtractionFailed, err)
	}
	logger.LogLLMResponse(e.model.ID(), p.ProductID, raw)

	return e.parseModelOutput(raw)
}

func (e *Extractor) parseModelOutput(raw string) (Observation, error) {
	blob, ok := jsonutil.ExtractJSONObject(raw)
	if !ok {
		return Observation{}, fmt.Errorf("%w: 模型输出中未找到 JSON 对象", ErrExtractionFailed)
	}
	var doc any
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return Observation{}, fmt.Errorf("%w: 模型输出非法 JSON: %v", ErrExtractionFailed, err)
	}
	if err := compiledObservationSchema.Validate(doc); err != nil {
		return Observation{}, fmt.Errorf("%w: 模型输出结构校验失败: %v", ErrExtractionFailed, err)
	}

	priceRaw := gjson.Get(blob, "price").String()
	price, parsedCur, ok := money.Parse(priceRaw)
	if !ok || !price.IsPositive() {
		return Observation{}, fmt.Errorf("%w: 价格字段不可解析: %q", ErrExtractionFailed, priceRaw)
	}

	conf := Confidence(strings.ToUpper(strings.TrimSpace(gjson.Get(blob, "confidence").String())))
	switch conf {
	case ConfidenceHigh, ConfidenceLow:
	default:
		return Observation{}, fmt.Errorf("%w: confidence=%q", ErrExtractionFailed, conf)
	}

	cur := strings.ToUpper(strings.TrimSpace(gjson.Get(blob, "currency").String()))
	if cur == "" {
		cur = orUSD(parsedCur)
	}
	return e.observation(price, cur, conf, gjson.Get(blob, "source_url").String()), nil
}

func (e *Extractor) observation(price decimal.Decimal, currency string, conf Confidence, sourceURL string) Observation {
	return Observation{
		Price:        price,
		Currency:     currency,
		Confidence:   conf,
		SourceURL:    sourceURL,
		SourceDomain: domainOf(sourceURL),
		ObservedAt:   e.nowFn().UTC(),
	}
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
