package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9980"
	defaultAppLogPath  = "/data/logs/dealradar.log"
	defaultAppLLMLog   = "/data/logs/dealradar-llm.log"
	defaultAppDBPath   = "/data/db/dealradar.db"

	defaultMonitorInterval   = "6h"
	defaultMonitorWorkers    = 4
	defaultMonitorDedupHours = 24
	defaultMonitorVolatility = 10.0
	defaultMonitorClaimTTL   = 30

	// 单价来自实际账单经验：搜索约 $0.01/次，chat 抽取约 $0.002/次。
	defaultBudgetCeiling = 5.0
	defaultSearchCost    = 0.01
	defaultExtractCost   = 0.002

	defaultSearchBaseURL  = "https://api.tavily.com"
	defaultSearchDepth    = "basic"
	defaultSearchResults  = 5
	defaultSearchTimeout  = 20
	defaultSearchRetries  = 2
	defaultBreakerFails   = 5
	defaultBreakerCooldwn = 120

	defaultAIURL     = "https://api.openai.com/v1"
	defaultAIModel   = "gpt-4o-mini"
	defaultAITimeout = 60
	defaultAIRetries = 2

	defaultChannelTimeout = 15
	defaultWatchlistPath  = "configs/watchlist.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Monitor.applyDefaults(keys)
	c.Budget.applyDefaults(keys)
	c.Search.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
	c.Watchlist.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLog),
		stringFieldDefault("app.db_path", &a.DBPath, defaultAppDBPath),
	)
}

func (m *MonitorConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("monitor.interval", &m.Interval, defaultMonitorInterval),
		fieldDefault{
			key:   "monitor.workers",
			need:  func() bool { return m.Workers <= 0 },
			apply: func() { m.Workers = defaultMonitorWorkers },
		},
		fieldDefault{
			key:   "monitor.dedup_window_hours",
			need:  func() bool { return m.DedupWindowHours <= 0 },
			apply: func() { m.DedupWindowHours = defaultMonitorDedupHours },
		},
		fieldDefault{
			key:   "monitor.volatility_pct",
			need:  func() bool { return m.VolatilityPct <= 0 },
			apply: func() { m.VolatilityPct = defaultMonitorVolatility },
		},
		fieldDefault{
			key:   "monitor.claim_ttl_minutes",
			need:  func() bool { return m.ClaimTTLMinutes <= 0 },
			apply: func() { m.ClaimTTLMinutes = defaultMonitorClaimTTL },
		},
	)
}

func (b *BudgetConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "budget.daily_ceiling_usd",
			need:  func() bool { return b.DailyCeilingUSD <= 0 },
			apply: func() { b.DailyCeilingUSD = defaultBudgetCeiling },
		},
		fieldDefault{
			key:   "budget.search_cost_usd",
			need:  func() bool { return b.SearchCostUSD <= 0 },
			apply: func() { b.SearchCostUSD = defaultSearchCost },
		},
		fieldDefault{
			key:   "budget.extract_cost_usd",
			need:  func() bool { return b.ExtractCostUSD <= 0 },
			apply: func() { b.ExtractCostUSD = defaultExtractCost },
		},
	)
}

func (s *SearchConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("search.base_url", &s.BaseURL, defaultSearchBaseURL),
		stringFieldDefault("search.depth", &s.Depth, defaultSearchDepth),
		fieldDefault{
			key:   "search.max_results",
			need:  func() bool { return s.MaxResults <= 0 },
			apply: func() { s.MaxResults = defaultSearchResults },
		},
		fieldDefault{
			key:   "search.timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultSearchTimeout },
		},
		fieldDefault{
			key:   "search.max_retries",
			need:  func() bool { return s.MaxRetries < 0 },
			apply: func() { s.MaxRetries = defaultSearchRetries },
		},
		fieldDefault{
			key:   "search.breaker_threshold",
			need:  func() bool { return s.BreakerThreshold <= 0 },
			apply: func() { s.BreakerThreshold = defaultBreakerFails },
		},
		fieldDefault{
			key:   "search.breaker_cooldown_seconds",
			need:  func() bool { return s.BreakerCooldownS <= 0 },
			apply: func() { s.BreakerCooldownS = defaultBreakerCooldwn },
		},
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ai.api_url", &a.APIURL, defaultAIURL),
		stringFieldDefault("ai.model", &a.Model, defaultAIModel),
		fieldDefault{
			key:   "ai.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAITimeout },
		},
		fieldDefault{
			key:   "ai.max_retries",
			need:  func() bool { return a.MaxRetries < 0 },
			apply: func() { a.MaxRetries = defaultAIRetries },
		},
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "notify.email.timeout_seconds",
			need:  func() bool { return n.Email.TimeoutSeconds <= 0 },
			apply: func() { n.Email.TimeoutSeconds = defaultChannelTimeout },
		},
		fieldDefault{
			key:   "notify.sms.timeout_seconds",
			need:  func() bool { return n.SMS.TimeoutSeconds <= 0 },
			apply: func() { n.SMS.TimeoutSeconds = defaultChannelTimeout },
		},
	)
}

func (w *WatchlistConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("watchlist.path", &w.Path, defaultWatchlistPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
