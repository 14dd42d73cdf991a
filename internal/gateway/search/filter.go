package search

import (
	"strings"

	"dealradar/internal/logger"
)

// 中文说明：
// 结果粗筛：把明显不是商品页的结果（社交/问答/百科/视频、评测与对比文）提前踢掉，
// 免得后面浪费一次按 URL 计费的抽取调用。

var excludedDomains = []string{
	"youtube.com", "youtu.be", "reddit.com", "quora.com", "stackoverflow.com",
	"wikipedia.org", "twitter.com", "facebook.com", "instagram.com",
	"pinterest.com", "tumblr.com", "medium.com", "blogspot.com",
	"wordpress.com", "linkedin.com", "discord.com", "tiktok.com",
}

var excludedKeywords = []string{"review", "comparison", "forum", "discussion", "article", "blog"}

// 片段开头出现这些词，多半是评测/榜单而不是商品页
var reviewIndicators = []string{
	"review", "reviewed by", "our pick", "best", "top",
	"comparison", "vs", "versus", "pros and cons",
}

// FilterProductPages 返回疑似商品页的结果子集。
func FilterProductPages(results []Result) []Result {
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if reason := rejectReason(r); reason != "" {
			logger.Debugf("[Search] 过滤 %s (%s)", truncateURL(r.URL), reason)
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func rejectReason(r Result) string {
	urlLower := strings.ToLower(r.URL)
	for _, d := range excludedDomains {
		if strings.Contains(urlLower, d) {
			return "excluded domain"
		}
	}
	if strings.HasSuffix(urlLower, ".pdf") || strings.Contains(urlLower, "/pdf") {
		return "pdf"
	}
	titleLower := strings.ToLower(r.Title)
	for _, kw := range excludedKeywords {
		if strings.Contains(titleLower, kw) || strings.Contains(urlLower, kw) {
			return "non-product page"
		}
	}
	// 只看片段前 200 字符：正文里顺带一句 "reviews" 不应误杀商品页
	snippet := strings.ToLower(r.Snippet())
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	for _, ind := range reviewIndicators {
		if strings.Contains(snippet, ind) {
			return "looks like review/comparison"
		}
	}
	return ""
}

// Snippet 首选 content，缺失时退回 raw_content。
func (r Result) Snippet() string {
	if r.Content != "" {
		return r.Content
	}
	return r.RawContent
}

func truncateURL(u string) string {
	if len(u) > 60 {
		return u[:60] + "..."
	}
	return u
}
