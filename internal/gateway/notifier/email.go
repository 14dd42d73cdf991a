package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// 中文说明：
// Email 通知器：走 Mailgun 风格的表单接口（POST {api_url}/messages，basic auth）。
// 任何兼容该表单格式的邮件服务都能用。

type Email struct {
	APIURL string
	APIKey string
	From   string
	Client *http.Client
}

func NewEmail(apiURL, apiKey, from string, timeout time.Duration) *Email {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Email{APIURL: apiURL, APIKey: apiKey, From: from, Client: &http.Client{Timeout: timeout}}
}

func (e *Email) Name() string { return "email" }

// Send 发送邮件（带最多 3 次重试）
func (e *Email) Send(ctx context.Context, recipient string, msg Message) error {
	if e.APIURL == "" || e.From == "" {
		return fmt.Errorf("email 配置不完整")
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("email 收件人为空")
	}
	endpoint := strings.TrimRight(e.APIURL, "/") + "/messages"

	form := url.Values{}
	form.Set("from", e.From)
	form.Set("to", recipient)
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Body)
	body := form.Encode()

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if e.APIKey != "" {
			req.SetBasicAuth("api", e.APIKey)
		}
		resp, err := e.Client.Do(req)
		if err != nil {
			lastErr = err
			if serr := sleepCtx(ctx, time.Duration(i+1)*time.Second); serr != nil {
				return serr
			}
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("email status=%d", resp.StatusCode)
		// 4xx（收件人非法、鉴权失败等）重试也不会变好
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			return lastErr
		}
		if serr := sleepCtx(ctx, time.Duration(i+1)*time.Second); serr != nil {
			return serr
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
