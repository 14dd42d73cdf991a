package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealradar/internal/logger"
	"dealradar/internal/pkg/circuit"
)

// 中文说明：
// Tavily 兼容的搜索客户端（POST /search）。
// 挂了断路器：搜索端连续失败时快速短路，别把预算和时间都耗在一个挂掉的上游。

// Result 搜索引擎返回的单条结果。
type Result struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

type Client struct {
	BaseURL    string
	APIKey     string
	Depth      string
	MaxResults int
	Timeout    time.Duration
	// 429/5xx 有限重试；0 表示默认 2 次
	MaxRetries int

	breaker *circuit.Breaker
	httpc   *http.Client
}

type Options struct {
	BaseURL          string
	APIKey           string
	Depth            string
	MaxResults       int
	Timeout          time.Duration
	MaxRetries       int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.tavily.com"
	}
	if opts.Depth == "" {
		opts.Depth = "basic"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(opts.BaseURL, "/"),
		APIKey:     opts.APIKey,
		Depth:      opts.Depth,
		MaxResults: opts.MaxResults,
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
		breaker:    circuit.NewBreaker("search", opts.BreakerThreshold, opts.BreakerCooldown),
		httpc:      &http.Client{Timeout: opts.Timeout},
	}
}

// ErrCircuitOpen 搜索端短路中，本轮直接跳过。
var ErrCircuitOpen = fmt.Errorf("search circuit open")

// Search 执行一次搜索并返回过滤前的原始结果。
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if c == nil {
		return nil, fmt.Errorf("search client not configured")
	}
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}
	results, err := c.doSearch(ctx, query)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()
	return results, nil
}

func (c *Client) doSearch(ctx context.Context, query string) ([]Result, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := c.BaseURL + "/search"
	body := map[string]any{
		"query":        query,
		"search_depth": c.Depth,
		"max_results":  c.MaxResults,
	}
	b, _ := json.Marshal(body)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// 传输层错误（连接重置、超时）同样按瞬态失败退避重试
			lastErr = err
			if attempt < maxRetries {
				wait := 800 * time.Millisecond << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				continue
			}
			break
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Results []Result `json:"results"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return nil, fmt.Errorf("decode search response: %w", derr)
			}
			logger.Debugf("[Search] query=%q 返回 %d 条结果", query, len(r.Results))
			return r.Results, nil
		}
		msg := resp.Status
		var eresp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		if eresp.Detail != "" {
			msg = eresp.Detail
		} else if eresp.Error != "" {
			msg = eresp.Error
		}
		if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < maxRetries {
			wait := time.Duration(0)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			if wait == 0 {
				base := 800 * time.Millisecond
				wait = base << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("search status=%d: %s", resp.StatusCode, msg)
			continue
		}
		lastErr = fmt.Errorf("search status=%d: %s", resp.StatusCode, msg)
		break
	}
	return nil, lastErr
}
