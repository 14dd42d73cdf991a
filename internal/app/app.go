package app

import (
	"context"
	"fmt"
	"sync"

	drcfg "dealradar/internal/config"
	"dealradar/internal/logger"
	"dealradar/internal/monitor"
	"dealradar/internal/scheduler"
	"dealradar/internal/store"
	apihttp "dealradar/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动巡检与 HTTP 服务。
type App struct {
	cfg     *drcfg.Config
	store   *store.Store
	runner  *serialRunner
	httpSrv *apihttp.Server
	sched   *scheduler.AlignedScheduler
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *drcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg)
}

// Run 启动 HTTP 服务与定时巡检，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.store.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	if a.sched != nil {
		group.Go(func() error {
			a.sched.Start(ctx, func() {
				if _, err := a.runner.Run(ctx); err != nil {
					logger.Errorf("巡检执行失败: %v", err)
				}
			})
			return nil
		})
	}

	return group.Wait()
}

// serialRunner 保证同一进程内同一时刻只有一轮巡检在跑：
// 定时触发与 HTTP 手动触发共用这把锁。
type serialRunner struct {
	mu sync.Mutex
	m  *monitor.Monitor
}

func (r *serialRunner) Run(ctx context.Context) (monitor.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.Run(ctx)
}
