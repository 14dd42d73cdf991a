package loader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dealradar/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 中文说明：
// Watchlist registry：产品清单文件（yaml）的装载与热更新。
// 与 HTTP 注册面并存——文件用于"基础清单进版本库"的场景，
// 改文件即生效，不用重启进程。

// Entry 描述清单中的一个产品。
type Entry struct {
	ProductID   string  `mapstructure:"product_id" yaml:"product_id"`
	Name        string  `mapstructure:"name" yaml:"name"`
	Query       string  `mapstructure:"query" yaml:"query"`
	URL         string  `mapstructure:"url" yaml:"url"`
	Currency    string  `mapstructure:"currency" yaml:"currency"`
	TargetPrice float64 `mapstructure:"target_price" yaml:"target_price"`
	Email       string  `mapstructure:"email" yaml:"email"`
	Phone       string  `mapstructure:"phone" yaml:"phone"`
}

type fileConfig struct {
	Products []Entry `mapstructure:"products" yaml:"products"`
}

// Snapshot 当前清单快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Entries  []Entry
}

// ChangeListener 在清单重载后触发（含首次装载）。
type ChangeListener func(Snapshot)

// Registry 管理 watchlist 文件。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// entrySchema 对清单条目做结构校验：坏条目整文件拒载，保持上个快照。
const entrySchema = `{
	"type": "object",
	"properties": {
		"products": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"product_id":   {"type": "string", "minLength": 1},
					"name":         {"type": "string"},
					"query":        {"type": "string"},
					"url":          {"type": "string"},
					"currency":     {"type": "string", "maxLength": 3},
					"target_price": {"type": "number", "minimum": 0},
					"email":        {"type": "string"},
					"phone":        {"type": "string"}
				},
				"required": ["product_id"],
				"anyOf": [
					{"required": ["name"]},
					{"required": ["query"]},
					{"required": ["url"]}
				]
			}
		}
	},
	"required": ["products"]
}`

var compiledEntrySchema = jsonschema.MustCompileString("watchlist.json", entrySchema)

// NewRegistry 读取清单文件；watch=true 时监听文件变更。
func NewRegistry(path string, watch bool) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("watchlist reload failed: %v", err)
				return
			}
			r.notifyListeners()
		})
		v.WatchConfig()
	}
	return r, nil
}

// Snapshot 返回当前清单。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readWatchlistFile(r.path)
	if err != nil {
		return err
	}
	entries := make([]Entry, 0, len(cfg.Products))
	seen := make(map[string]bool, len(cfg.Products))
	for _, e := range cfg.Products {
		e.ProductID = strings.TrimSpace(e.ProductID)
		if e.ProductID == "" || seen[e.ProductID] {
			continue
		}
		seen[e.ProductID] = true
		e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
		entries = append(entries, e)
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	r.mu.Unlock()
	logger.Infof("watchlist 装载 %d 个产品 (%s)", len(entries), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("watchlist listener")
			cb(snap)
		}(fn)
	}
}

func readWatchlistFile(path string) (fileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fileConfig{}, err
	}
	settings := v.AllSettings()
	if err := validateAgainstSchema(settings); err != nil {
		return fileConfig{}, err
	}
	// 经由 yaml 往返规范化数字/字符串类型，避免 viper 的 any 类型泄漏。
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return fileConfig{}, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse watchlist failed: %w", err)
	}
	return cfg, nil
}

func validateAgainstSchema(settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := compiledEntrySchema.Validate(doc); err != nil {
		return fmt.Errorf("watchlist schema validation failed: %w", err)
	}
	return nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Entries:  make([]Entry, len(src.Entries)),
	}
	copy(dst.Entries, src.Entries)
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
