package config

import "strings"

// Config 是 dealradar 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Budget    BudgetConfig    `toml:"budget"`
	Search    SearchConfig    `toml:"search"`
	AI        AIConfig        `toml:"ai"`
	Notify    NotifyConfig    `toml:"notify"`
	Watchlist WatchlistConfig `toml:"watchlist"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
	DBPath   string `toml:"db_path"`
}

// MonitorConfig 控制巡检节奏与判定策略。
type MonitorConfig struct {
	Interval   string `toml:"interval"`     // "6h" 这类写法，见 scheduler.ParseIntervalDuration
	RunOnStart bool   `toml:"run_on_start"` // 启动时先跑一轮
	Workers    int    `toml:"workers"`      // 并发处理产品数上限

	// 去重窗口与波动率阈值：产品需求未定，按保守默认值走配置。
	DedupWindowHours int     `toml:"dedup_window_hours"`
	VolatilityPct    float64 `toml:"volatility_pct"`
	ClaimTTLMinutes  int     `toml:"claim_ttl_minutes"`
}

// BudgetConfig 外部 API 消费上限（美元/天）与单次调用的预估单价。
type BudgetConfig struct {
	DailyCeilingUSD float64 `toml:"daily_ceiling_usd"`
	SearchCostUSD   float64 `toml:"search_cost_usd"`
	ExtractCostUSD  float64 `toml:"extract_cost_usd"`
}

// SearchConfig 检索服务（Tavily 兼容）接入配置。
type SearchConfig struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	Depth            string `toml:"depth"` // basic | advanced
	MaxResults       int    `toml:"max_results"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxRetries       int    `toml:"max_retries"`
	BreakerThreshold int    `toml:"breaker_threshold"`
	BreakerCooldownS int    `toml:"breaker_cooldown_seconds"`
}

// AIConfig 价格抽取所用的 chat 模型接入配置（OpenAI 兼容协议）。
type AIConfig struct {
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	SnippetOnly    bool              `toml:"snippet_only"` // 只走摘要正则快路径，不调模型（省钱的降级开关）
}

type NotifyConfig struct {
	Email EmailConfig `toml:"email"`
	SMS   SMSConfig   `toml:"sms"`
}

// EmailConfig REST 邮件通道（Mailgun 风格 form POST）。
type EmailConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	From           string `toml:"from"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SMSConfig REST 短信通道（Twilio 风格）。
type SMSConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	AccountSID     string `toml:"account_sid"`
	AuthToken      string `toml:"auth_token"`
	From           string `toml:"from"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// WatchlistConfig 产品清单文件（可选，和 HTTP 注册面并存）。
type WatchlistConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"` // fsnotify 热加载
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
