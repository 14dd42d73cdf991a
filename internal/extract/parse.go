package extract

import (
	"regexp"
	"strings"

	"dealradar/internal/gateway/search"
	"dealradar/internal/logger"
	"dealradar/internal/pkg/money"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 摘要快速通道：很多商品页的搜索摘要里就写着到手价，
// 命中这里就省掉一次模型调用。运营商页（按月付款套路多）和厂商官网
// （摘要常年不带价）例外，必须走完整抽取。

var carrierDomains = []string{
	"verizon.com", "att.com", "t-mobile.com", "tmobile.com", "sprint.com", "uscellular.com",
}

var manufacturerDomains = []string{
	"samsung.com", "dell.com", "hp.com", "lg.com", "asus.com", "acer.com",
	"lenovo.com", "msi.com", "viewsonic.com", "benq.com", "philips.com",
	"apple.com", "microsoft.com", "sony.com", "panasonic.com",
}

// 运营商页优先找裸机全款价，而不是第一个出现的数字
var fullRetailRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Full retail price[:\s]+\$?([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)Outright purchase[:\s]+\$?([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)Buy outright[:\s]+\$?([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)One-time purchase[:\s]+\$?([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)Full price[:\s]+\$?([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)Retail price[:\s]+\$?([\d,]+(?:\.\d{2})?)`),
}

var dollarPriceRe = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)

var monthlyPhrases = []string{"/mo", "per month", "monthly", "for 36", "for 24", "saving", "save"}

func isCarrierPage(urlLower string) bool {
	for _, d := range carrierDomains {
		if strings.Contains(urlLower, d) {
			return true
		}
	}
	return false
}

func isManufacturerSite(urlLower string) bool {
	for _, d := range manufacturerDomains {
		if strings.Contains(urlLower, d) {
			return true
		}
	}
	return false
}

// snippetPrice 尝试直接从搜索摘要中取价。第二返回值为币种。
func snippetPrice(r search.Result) (decimal.Decimal, string, bool) {
	snippet := r.Snippet()
	if snippet == "" {
		return decimal.Zero, "", false
	}
	urlLower := strings.ToLower(r.URL)

	// 厂商官网摘要里的数字不可信，强制走完整抽取
	if isManufacturerSite(urlLower) {
		logger.Debugf("[Extract] 厂商站点 %s，跳过摘要快速通道", r.URL)
		return decimal.Zero, "", false
	}

	carrier := isCarrierPage(urlLower)
	if carrier {
		for _, re := range fullRetailRes {
			if m := re.FindStringSubmatch(snippet); m != nil {
				if d, cur, ok := money.Parse("$" + m[1]); ok {
					logger.Debugf("[Extract] 运营商摘要命中全款价 %s (%s)", d, r.URL)
					return d, orUSD(cur), true
				}
			}
		}
		// 没有明确的全款价标签就不信摘要，避免把月供当成售价
		return decimal.Zero, "", false
	}

	if m := dollarPriceRe.FindString(snippet); m != "" {
		if hasMonthlyContext(snippet, m) {
			logger.Debugf("[Extract] 摘要价格 %s 疑似月供，放弃快速通道 (%s)", m, r.URL)
			return decimal.Zero, "", false
		}
		if d, cur, ok := money.Parse(m); ok {
			return d, orUSD(cur), true
		}
	}
	return decimal.Zero, "", false
}

// hasMonthlyContext 检查价格前后 30/50 字符是否出现按月付款字样。
func hasMonthlyContext(snippet, match string) bool {
	idx := strings.Index(strings.ToLower(snippet), strings.ToLower(match))
	if idx == -1 {
		return false
	}
	start := idx - 30
	if start < 0 {
		start = 0
	}
	end := idx + len(match) + 50
	if end > len(snippet) {
		end = len(snippet)
	}
	ctx := strings.ToLower(snippet[start:end])
	for _, phrase := range monthlyPhrases {
		if strings.Contains(ctx, phrase) {
			return true
		}
	}
	return false
}

func orUSD(cur string) string {
	if cur == "" {
		return "USD"
	}
	return cur
}
