package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Monitor.validate(); err != nil {
		return err
	}
	if err := c.Search.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.VolatilityPct < 0 || m.VolatilityPct > 100 {
		return fmt.Errorf("monitor.volatility_pct must be within 0-100")
	}
	if m.DedupWindowHours < 0 {
		return fmt.Errorf("monitor.dedup_window_hours must be >= 0")
	}
	return nil
}

func (s *SearchConfig) validate() error {
	depth := strings.ToLower(strings.TrimSpace(s.Depth))
	if depth != "basic" && depth != "advanced" {
		return fmt.Errorf("search.depth must be basic or advanced, got %q", s.Depth)
	}
	s.Depth = depth
	return nil
}

func (a *AIConfig) validate() error {
	if a.SnippetOnly {
		// 纯摘要模式不需要模型配置。
		return nil
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("ai.model is required")
	}
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("ai.api_url is required")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Email.Enabled {
		if strings.TrimSpace(n.Email.APIURL) == "" {
			return fmt.Errorf("notify.email.api_url is required when email channel is enabled")
		}
		if strings.TrimSpace(n.Email.From) == "" {
			return fmt.Errorf("notify.email.from is required when email channel is enabled")
		}
	}
	if n.SMS.Enabled {
		if strings.TrimSpace(n.SMS.APIURL) == "" {
			return fmt.Errorf("notify.sms.api_url is required when sms channel is enabled")
		}
		if strings.TrimSpace(n.SMS.From) == "" {
			return fmt.Errorf("notify.sms.from is required when sms channel is enabled")
		}
	}
	return nil
}
