package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"dealradar/internal/budget"
	drcfg "dealradar/internal/config"
	"dealradar/internal/config/loader"
	"dealradar/internal/dispatch"
	"dealradar/internal/extract"
	"dealradar/internal/filter"
	"dealradar/internal/gateway/notifier"
	"dealradar/internal/gateway/provider"
	"dealradar/internal/gateway/search"
	"dealradar/internal/logger"
	"dealradar/internal/monitor"
	"dealradar/internal/report"
	"dealradar/internal/scheduler"
	"dealradar/internal/store"
	apihttp "dealradar/internal/transport/http/api"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 手工装配：依赖图不深，按顺序拼起来即可，读起来比生成代码直观。

func buildApp(cfg *drcfg.Config) (*App, error) {
	st, err := store.Open(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if cfg.Monitor.ClaimTTLMinutes > 0 {
		st.SetClaimTTL(time.Duration(cfg.Monitor.ClaimTTLMinutes) * time.Minute)
	}

	tracker := budget.NewTracker(st, decimal.NewFromFloat(cfg.Budget.DailyCeilingUSD))

	searcher := search.NewClient(search.Options{
		BaseURL:          cfg.Search.BaseURL,
		APIKey:           cfg.Search.APIKey,
		Depth:            cfg.Search.Depth,
		MaxResults:       cfg.Search.MaxResults,
		Timeout:          time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		MaxRetries:       cfg.Search.MaxRetries,
		BreakerThreshold: cfg.Search.BreakerThreshold,
		BreakerCooldown:  time.Duration(cfg.Search.BreakerCooldownS) * time.Second,
	})

	var model provider.ModelProvider
	if !cfg.AI.SnippetOnly {
		client := &provider.OpenAIChatClient{
			BaseURL:      cfg.AI.APIURL,
			APIKey:       cfg.AI.APIKey,
			Model:        cfg.AI.Model,
			Timeout:      time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
			MaxRetries:   cfg.AI.MaxRetries,
			ExtraHeaders: cfg.AI.Headers,
		}
		model = provider.NewOpenAIModelProvider(cfg.AI.Model, true, client)
	}

	extractor := extract.New(searcher, model, tracker, extract.Costs{
		Search: decimal.NewFromFloat(cfg.Budget.SearchCostUSD),
		LLM:    decimal.NewFromFloat(cfg.Budget.ExtractCostUSD),
	}, cfg.AI.SnippetOnly)

	detector := filter.NewDetector(st,
		time.Duration(cfg.Monitor.DedupWindowHours)*time.Hour,
		decimal.NewFromFloat(cfg.Monitor.VolatilityPct))

	channels := buildChannels(cfg.Notify)
	dispatcher := dispatch.NewDispatcher(st, channels...)

	mon := monitor.New(st, extractor, detector, dispatcher, tracker, cfg.Monitor.Workers)
	runner := &serialRunner{m: mon}

	if err := loadWatchlist(cfg.Watchlist, st); err != nil {
		st.Close()
		return nil, err
	}

	httpSrv, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:   cfg.App.HTTPAddr,
		Store:  st,
		Runner: runner,
		Report: report.New(st),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	interval, ok := scheduler.ParseIntervalDuration(cfg.Monitor.Interval)
	if !ok {
		st.Close()
		return nil, fmt.Errorf("非法巡检间隔: %q", cfg.Monitor.Interval)
	}
	sched := scheduler.NewAlignedScheduler(interval, 0)
	sched.RunImmediately = cfg.Monitor.RunOnStart

	app := &App{
		cfg:     cfg,
		store:   st,
		runner:  runner,
		httpSrv: httpSrv,
		sched:   sched,
		Summary: buildStartupSummary(cfg, channels),
	}
	return app, nil
}

func buildChannels(cfg drcfg.NotifyConfig) []notifier.Channel {
	var channels []notifier.Channel
	if cfg.Email.Enabled {
		channels = append(channels, notifier.NewEmail(
			cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.From,
			time.Duration(cfg.Email.TimeoutSeconds)*time.Second))
	}
	if cfg.SMS.Enabled {
		channels = append(channels, notifier.NewSMS(
			cfg.SMS.APIURL, cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From,
			time.Duration(cfg.SMS.TimeoutSeconds)*time.Second))
	}
	if len(channels) == 0 {
		logger.Warnf("未启用任何通知通道，降价只会落库不会外发")
	}
	return channels
}

// loadWatchlist 装载基础清单并同步进 store；watch 模式下文件变更即再同步。
func loadWatchlist(cfg drcfg.WatchlistConfig, st *store.Store) error {
	if cfg.Path == "" {
		return nil
	}
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		logger.Infof("watchlist 文件不存在，跳过: %s", cfg.Path)
		return nil
	}
	registry, err := loader.NewRegistry(cfg.Path, cfg.Watch)
	if err != nil {
		return fmt.Errorf("装载 watchlist 失败: %w", err)
	}
	syncEntries := func(snap loader.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, e := range snap.Entries {
			p := store.Product{
				ProductID: e.ProductID,
				Name:      e.Name,
				Query:     e.Query,
				URL:       e.URL,
				Currency:  e.Currency,
				Email:     e.Email,
				Phone:     e.Phone,
			}
			if e.TargetPrice > 0 {
				v := decimal.NewFromFloat(e.TargetPrice)
				p.TargetPrice = &v
			}
			if err := st.UpsertProduct(ctx, p); err != nil {
				logger.Errorf("watchlist 产品 %s 同步失败: %v", e.ProductID, err)
			}
		}
		logger.Infof("watchlist 同步完成 (version=%d, %d 个产品)", snap.Version, len(snap.Entries))
	}
	registry.OnChange(syncEntries)
	syncEntries(registry.Snapshot())
	return nil
}
