package notifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const maxAlertBodyLen = 1200

// 中文说明：
// 降价提醒的统一文案。邮件/短信共用同一份正文，邮件额外带主题行。

// Alert 渲染降价通知所需的全部字段。
type Alert struct {
	ProductName string
	OldPrice    decimal.Decimal
	NewPrice    decimal.Decimal
	Currency    string
	URL         string
}

// Render 生成可投递的消息。
func (a Alert) Render() Message {
	drop := a.OldPrice.Sub(a.NewPrice)
	pct := decimal.Zero
	if a.OldPrice.IsPositive() {
		pct = drop.Div(a.OldPrice).Mul(decimal.NewFromInt(100))
	}
	sym := currencySymbol(a.Currency)

	var b strings.Builder
	b.WriteString("Price Drop Alert!\n\n")
	b.WriteString(a.ProductName + "\n\n")
	b.WriteString(fmt.Sprintf("Price dropped from %s%s to %s%s\n",
		sym, a.OldPrice.StringFixed(2), sym, a.NewPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("You save %s%s (%s%% off!)\n",
		sym, drop.StringFixed(2), pct.StringFixed(1)))
	if strings.TrimSpace(a.URL) != "" {
		b.WriteString("\nView deal: " + strings.TrimSpace(a.URL) + "\n")
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxAlertBodyLen {
		body = body[:maxAlertBodyLen] + "..."
	}
	return Message{
		Subject: "Price Drop: " + strings.TrimSpace(a.ProductName),
		Body:    body,
	}
}

func currencySymbol(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY", "CNY":
		return "¥"
	default:
		return strings.ToUpper(code) + " "
	}
}
