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
// SMS 通知器：Twilio 风格接口（POST {api_url}/Accounts/{sid}/Messages.json）。
// 短信没有主题行，只投递正文。

type SMS struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	From       string
	Client     *http.Client
}

func NewSMS(apiURL, accountSID, authToken, from string, timeout time.Duration) *SMS {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMS{APIURL: apiURL, AccountSID: accountSID, AuthToken: authToken, From: from,
		Client: &http.Client{Timeout: timeout}}
}

func (s *SMS) Name() string { return "sms" }

// Send 发送短信（带最多 3 次重试）
func (s *SMS) Send(ctx context.Context, recipient string, msg Message) error {
	if s.APIURL == "" || s.AccountSID == "" || s.From == "" {
		return fmt.Errorf("SMS 配置不完整")
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("SMS 收件人为空")
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json",
		strings.TrimRight(s.APIURL, "/"), s.AccountSID)

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", s.From)
	form.Set("Body", msg.Body)
	body := form.Encode()

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(s.AccountSID, s.AuthToken)
		resp, err := s.Client.Do(req)
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
		lastErr = fmt.Errorf("sms status=%d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			return lastErr
		}
		if serr := sleepCtx(ctx, time.Duration(i+1)*time.Second); serr != nil {
			return serr
		}
	}
	return lastErr
}
