package extract

import (
	"fmt"
	"strings"

	"dealradar/internal/gateway/search"
	"dealradar/internal/pkg/text"
)

// 中文说明：
// 抽取 prompt：把前 top-k 条搜索结果拼给模型，要求输出严格 JSON。
// 运营商页的特别指令照搬实战教训——月供价是最常见的坑。

const extractSystemPrompt = "You are a product price extractor. " +
	"Extract the current purchase price from web search results and return only valid JSON."

const maxSnippetChars = 2000

const carrierInstructions = `CRITICAL INSTRUCTIONS FOR CARRIER/MOBILE PROVIDER PAGES:
- These pages show monthly payment plans, full retail prices, and savings amounts
- ALWAYS prioritize the "Full retail price" or "Outright purchase" price
- IGNORE monthly payment plan prices (e.g. "$17.49/mo for 36 mos") and savings amounts
- If you cannot find a full retail price for such a page, skip it`

func buildUserPrompt(productName, query string, results []search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user is tracking the price of: %q (search query: %q)\n\n", productName, query)

	hasCarrier := false
	for i, r := range results {
		if isCarrierPage(strings.ToLower(r.URL)) {
			hasCarrier = true
		}
		fmt.Fprintf(&b, "--- Result %d ---\nTitle: %s\nURL: %s\nContent:\n%s\n\n",
			i+1, r.Title, r.URL, text.Truncate(r.Snippet(), maxSnippetChars))
	}
	if hasCarrier {
		b.WriteString(carrierInstructions)
		b.WriteString("\n\n")
	}

	b.WriteString(`IMPORTANT: Prices may appear as "$999", "$1,299.99", "From $999", "Was $X, Now $Y", price ranges like "$999-$1,299", or bare numbers like 999.99.

Extract and return ONLY a valid JSON object with these exact fields:
{
  "price": "Current full purchase price with currency symbol (e.g. "$999.99"). NOT a monthly payment plan. If no reliable price is found, use "Price not available"",
  "currency": "ISO code, e.g. "USD"",
  "confidence": "HIGH if the price clearly refers to the tracked product on a product page; LOW if uncertain; UNKNOWN if no price found",
  "source_url": "URL of the result the price came from"
}

Return ONLY valid JSON, no markdown, no explanations, no other text.`)
	return b.String()
}
