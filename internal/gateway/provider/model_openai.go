package provider

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
)

// 中文说明：
// OpenAIChatClient：兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口（/v1/chat/completions）。
// 价格抽取走这里，所以默认 temperature 取 0，保证输出尽量确定。

type OpenAIChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// 简易重试（用于 429/5xx）：若为 0 则默认重试 2 次
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *OpenAIChatClient) CallWithMessages(ctx context.Context, payload ChatPayload) (string, error) {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	// 规范化 BaseURL，避免用户把完整的 /chat/completions 也写进了配置导致重复路径
	url := c.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	// 去掉尾部斜杠
	url = strings.TrimRight(url, "/")
	// 若已经包含 /chat/completions 则去掉，稍后统一追加一次
	if strings.HasSuffix(url, "/chat/completions") {
		url = strings.TrimSuffix(url, "/chat/completions")
	}
	url = url + "/chat/completions"

	// 构造消息
	messages := []map[string]string{}
	if payload.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": payload.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": payload.User})

	body := map[string]any{"model": c.Model, "messages": messages, "temperature": 0}
	if payload.MaxTokens > 0 {
		body["max_tokens"] = payload.MaxTokens
	}
	if payload.ExpectJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	b, _ := json.Marshal(body)

	httpc := &http.Client{Timeout: c.Timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// 打印完整请求（仅首个尝试，debug 级别；授权头做掩码）
		if attempt == 0 {
			hlog := map[string]string{"Content-Type": "application/json"}
			if c.APIKey != "" {
				// 掩码 Bearer 密钥，仅展示后 4 位
				tail := c.APIKey
				if len(c.APIKey) > 4 {
					tail = c.APIKey[len(c.APIKey)-4:]
				}
				hlog["Authorization"] = fmt.Sprintf("Bearer ****%s", tail)
			}
			for k, v := range c.ExtraHeaders {
				// 对可能包含敏感信息的头进行掩码
				lk := strings.ToLower(k)
				mv := v
				if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
					if len(v) > 4 {
						mv = "****" + v[len(v)-4:]
					} else {
						mv = "****"
					}
				}
				hlog[k] = mv
			}
			logger.Debugf("[AI] 请求: POST %s, headers=%v, body=%s", url, hlog, string(b))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
		}
		// 覆盖/补充自定义请求头（若配置中提供）
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// 传输层错误（连接重置、超时）与 429/5xx 一样算瞬态失败，退避后重试
			lastErr = err
			if attempt < maxRetries {
				wait := 800 * time.Millisecond << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return "", ctx.Err()
				}
				continue
			}
			break
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				lastErr = derr
				break
			}
			if len(r.Choices) == 0 {
				lastErr = fmt.Errorf("empty choices")
				break
			}
			return r.Choices[0].Message.Content, nil
		}
		// 非 2xx：尝试解析错误消息
		var eresp struct {
			Error struct {
				Message string      `json:"message"`
				Type    string      `json:"type"`
				Param   string      `json:"param"`
				Code    interface{} `json:"code"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		// 对 429/5xx 进行有限重试（带 Retry-After 支持）
		if (resp.StatusCode == 429 || resp.StatusCode == 500 || resp.StatusCode == 502 || resp.StatusCode == 503 || resp.StatusCode == 504) && attempt < maxRetries {
			wait := time.Duration(0)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			if wait == 0 {
				// 基本指数退避：0.8s, 1.6s, 3.2s ...
				base := 800 * time.Millisecond
				wait = base << attempt
				if wait > 8*time.Second {
					wait = 8 * time.Second
				}
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
			continue
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		break
	}
	return "", lastErr
}

// OpenAIModelProvider：实现 ModelProvider
type OpenAIModelProvider struct {
	id      string
	enabled bool
	client  *OpenAIChatClient
}

func NewOpenAIModelProvider(id string, enabled bool, client *OpenAIChatClient) *OpenAIModelProvider {
	return &OpenAIModelProvider{id: id, enabled: enabled, client: client}
}

func (p *OpenAIModelProvider) ID() string    { return p.id }
func (p *OpenAIModelProvider) Enabled() bool { return p.enabled }
func (p *OpenAIModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	return p.client.CallWithMessages(ctx, payload)
}
