package app

import (
	"fmt"
	"strings"

	drcfg "dealradar/internal/config"
	"dealradar/internal/gateway/notifier"
)

type StartupSummary struct {
	Interval      string
	RunOnStart    bool
	Workers       int
	DedupHours    int
	VolatilityPct float64
	CeilingUSD    float64
	SearchDepth   string
	Model         string
	SnippetOnly   bool
	Channels      []string
	WatchlistPath string
	HTTPAddr      string
}

func buildStartupSummary(cfg *drcfg.Config, channels []notifier.Channel) *StartupSummary {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	model := cfg.AI.Model
	if cfg.AI.SnippetOnly {
		model = "(disabled)"
	}
	return &StartupSummary{
		Interval:      cfg.Monitor.Interval,
		RunOnStart:    cfg.Monitor.RunOnStart,
		Workers:       cfg.Monitor.Workers,
		DedupHours:    cfg.Monitor.DedupWindowHours,
		VolatilityPct: cfg.Monitor.VolatilityPct,
		CeilingUSD:    cfg.Budget.DailyCeilingUSD,
		SearchDepth:   cfg.Search.Depth,
		Model:         model,
		SnippetOnly:   cfg.AI.SnippetOnly,
		Channels:      names,
		WatchlistPath: cfg.Watchlist.Path,
		HTTPAddr:      cfg.App.HTTPAddr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[巡检 (MONITOR)]")
	fmt.Printf("  周期: %s (启动即跑: %v)\n", s.Interval, s.RunOnStart)
	fmt.Printf("  并发: %d\n", s.Workers)
	fmt.Printf("  去重窗口: %dh, 波动阈值: %.1f%%\n", s.DedupHours, s.VolatilityPct)
	fmt.Println()

	fmt.Println("[预算 (BUDGET)]")
	fmt.Printf("  日上限: $%.2f\n", s.CeilingUSD)
	fmt.Println()

	fmt.Println("[抽取 (EXTRACTION)]")
	fmt.Printf("  搜索深度: %s\n", s.SearchDepth)
	fmt.Printf("  模型: %s\n", s.Model)
	if s.SnippetOnly {
		fmt.Println("  仅摘要模式: 开（不调模型）")
	}
	fmt.Println()

	fmt.Println("[通知 (NOTIFY)]")
	fmt.Printf("  通道: %s\n", formatList(s.Channels))
	fmt.Println()

	fmt.Println("[其他 (MISC)]")
	fmt.Printf("  HTTP: %s\n", s.HTTPAddr)
	if s.WatchlistPath != "" {
		fmt.Printf("  watchlist: %s\n", s.WatchlistPath)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
