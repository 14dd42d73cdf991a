package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterProductPages(t *testing.T) {
	results := []Result{
		{
			Title:   "Sony WH-1000XM5 Wireless Headphones",
			URL:     "https://www.bestbuy.com/site/sony-wh-1000xm5",
			Content: "Sony WH-1000XM5 Wireless Noise Canceling Headphones - $348.00",
		},
		{
			Title:   "Sony WH-1000XM5 unboxing and first look",
			URL:     "https://www.youtube.com/watch?v=abc123",
			Content: "Unboxing video",
		},
		{
			Title:   "WH-1000XM5 megathread",
			URL:     "https://www.reddit.com/r/headphones/xm5",
			Content: "Community discussion",
		},
		{
			Title:   "Sony WH-1000XM5 review: still the one to beat",
			URL:     "https://www.techsite.com/sony-wh-1000xm5-hands-on",
			Content: "We spent two weeks with Sony's flagship",
		},
		{
			Title:   "WH-1000XM5 user manual",
			URL:     "https://helpguide.sony.net/mdr/wh1000xm5/manual.pdf",
			Content: "Operating instructions",
		},
		{
			Title:   "Sony WH-1000XM5 | Walmart",
			URL:     "https://www.walmart.com/ip/sony-wh-1000xm5",
			Content: "Our pick for noise canceling: the WH-1000XM5 beats rivals",
		},
		{
			Title:   "Sony WH-1000XM5 Headphones | Target",
			URL:     "https://www.target.com/p/sony-wh-1000xm5",
			Content: "Wireless noise canceling headphones. $348.00. Free shipping.",
		},
	}

	kept := FilterProductPages(results)
	require.Len(t, kept, 2)
	assert.Equal(t, "https://www.bestbuy.com/site/sony-wh-1000xm5", kept[0].URL)
	assert.Equal(t, "https://www.target.com/p/sony-wh-1000xm5", kept[1].URL)
}

func TestRejectReason(t *testing.T) {
	t.Run("ExcludedDomain", func(t *testing.T) {
		r := Result{URL: "https://medium.com/@dealhunter/xm5"}
		assert.Equal(t, "excluded domain", rejectReason(r))
	})

	t.Run("ReviewKeywordInURL", func(t *testing.T) {
		r := Result{URL: "https://site.com/sony-xm5-review-2026", Title: "Sony XM5"}
		assert.Equal(t, "non-product page", rejectReason(r))
	})

	t.Run("ReviewIndicatorBeyond200CharsIgnored", func(t *testing.T) {
		// 正文深处顺带出现 "reviews" 不应误杀商品页
		padding := strings.Repeat("great sound quality. ", 12)
		r := Result{
			URL:     "https://www.target.com/p/sony-xm5",
			Title:   "Sony WH-1000XM5",
			Content: padding + "See all customer reviews.",
		}
		assert.Equal(t, "", rejectReason(r))
	})

	t.Run("CleanProductPage", func(t *testing.T) {
		r := Result{
			URL:     "https://www.target.com/p/sony-xm5",
			Title:   "Sony WH-1000XM5 Headphones",
			Content: "$348.00 Free shipping",
		}
		assert.Equal(t, "", rejectReason(r))
	})
}

func TestResultSnippet(t *testing.T) {
	assert.Equal(t, "a", Result{Content: "a", RawContent: "b"}.Snippet())
	assert.Equal(t, "b", Result{RawContent: "b"}.Snippet())
	assert.Equal(t, "", Result{}.Snippet())
}
