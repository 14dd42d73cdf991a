package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 价格字符串解析：搜索摘要与模型输出里的价格形态五花八门
// （"$1,299.99"、"From $999"、"999.99"、"$999-$1,299"），
// 统一解析为 decimal，区间取下限。

var numberRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})*(?:\.\d+)?|\d+(?:\.\d+)?`)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "CNY",
}

// Parse 从任意价格文本中取出首个金额。第二返回值是按符号猜测的币种（无符号时为空）。
func Parse(s string) (decimal.Decimal, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, "", false
	}
	lower := strings.ToLower(s)
	if lower == "price not available" || lower == "none" || lower == "n/a" {
		return decimal.Zero, "", false
	}
	currency := ""
	for sym, code := range currencySymbols {
		if strings.Contains(s, sym) {
			currency = code
			break
		}
	}
	m := numberRe.FindString(s)
	if m == "" {
		return decimal.Zero, "", false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil || d.IsNegative() {
		return decimal.Zero, "", false
	}
	return d, currency, true
}

// Format 输出 "USD 1299.99" 形式，币种为空时退化为纯数字。
func Format(d decimal.Decimal, currency string) string {
	v := d.StringFixed(2)
	if currency == "" {
		return v
	}
	return currency + " " + v
}

// DropPct 返回 old→new 的下降百分比（0~100）。old<=0 时返回 0。
func DropPct(old, new decimal.Decimal) decimal.Decimal {
	if !old.IsPositive() {
		return decimal.Zero
	}
	return old.Sub(new).Div(old).Mul(decimal.NewFromInt(100))
}

// DiffPct 返回两值相对 base 的绝对偏差百分比，用于波动率阈值判断。
func DiffPct(base, other decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return base.Sub(other).Abs().Div(base).Mul(decimal.NewFromInt(100))
}
