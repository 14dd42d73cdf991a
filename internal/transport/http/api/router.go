package apihttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"dealradar/internal/monitor"
	"dealradar/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 中文说明：
// 薄 CRUD 外壳：注册/查询产品、查询 run 汇总、手动触发一轮巡检。
// 核心流水线不依赖这里，砍掉 HTTP 面不影响定时巡检。

// ProductStore 路由层需要的 store 子集。
type ProductStore interface {
	ListProducts(ctx context.Context) ([]store.Product, error)
	GetProduct(ctx context.Context, productID string) (store.Product, error)
	UpsertProduct(ctx context.Context, p store.Product) error
	DeleteProduct(ctx context.Context, productID string) error
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetRun(ctx context.Context, runID string) (store.RunRecord, error)
}

// RunTrigger 手动触发一轮巡检。
type RunTrigger interface {
	Run(ctx context.Context) (monitor.Summary, error)
}

// ReportRenderer 渲染 HTML 报表。
type ReportRenderer interface {
	RenderHTML(ctx context.Context, w io.Writer) error
}

type Router struct {
	store  ProductStore
	runner RunTrigger
	report ReportRenderer

	// 同一时刻只允许一轮手动巡检
	runMu sync.Mutex
}

func NewRouter(st ProductStore, runner RunTrigger, report ReportRenderer) *Router {
	return &Router{store: st, runner: runner, report: report}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/products", r.handleListProducts)
	group.POST("/products", r.handleCreateProduct)
	group.GET("/products/:id", r.handleGetProduct)
	group.DELETE("/products/:id", r.handleDeleteProduct)
	group.GET("/runs", r.handleListRuns)
	group.GET("/runs/:id", r.handleGetRun)
	if r.runner != nil {
		group.POST("/runs", r.handleTriggerRun)
	}
}

type productRequest struct {
	ProductID   string   `json:"product_id"`
	Name        string   `json:"name"`
	Query       string   `json:"query"`
	URL         string   `json:"url"`
	Currency    string   `json:"currency"`
	TargetPrice *float64 `json:"target_price"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
}

type productResponse struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	Query         string  `json:"query,omitempty"`
	URL           string  `json:"url,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	TargetPrice   *string `json:"target_price,omitempty"`
	LastPrice     *string `json:"last_price,omitempty"`
	LastCheckedAt *string `json:"last_checked_at,omitempty"`
	Email         string  `json:"email,omitempty"`
	Phone         string  `json:"phone,omitempty"`
}

func (r *Router) handleListProducts(c *gin.Context) {
	products, err := r.store.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

func (r *Router) handleCreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不是合法 JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Query) == "" && strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name/query/url 至少提供一个"})
		return
	}
	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Phone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email/phone 至少提供一个收件方式"})
		return
	}
	p := store.Product{
		ProductID: strings.TrimSpace(req.ProductID),
		Name:      req.Name,
		Query:     req.Query,
		URL:       req.URL,
		Currency:  req.Currency,
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if p.ProductID == "" {
		p.ProductID = uuid.NewString()
	}
	if req.TargetPrice != nil {
		if *req.TargetPrice <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_price 必须为正数"})
			return
		}
		v := decimal.NewFromFloat(*req.TargetPrice)
		p.TargetPrice = &v
	}
	if err := r.store.UpsertProduct(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(p))
}

func (r *Router) handleGetProduct(c *gin.Context) {
	p, err := r.store.GetProduct(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "产品不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (r *Router) handleDeleteProduct(c *gin.Context) {
	err := r.store.DeleteProduct(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "产品不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (r *Router) handleListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	runs, err := r.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (r *Router) handleGetRun(c *gin.Context) {
	rec, err := r.store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run 不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleTriggerRun(c *gin.Context) {
	if !r.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "已有巡检在执行"})
		return
	}
	defer r.runMu.Unlock()
	summary, err := r.runner.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (r *Router) handleReport(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := r.report.RenderHTML(c.Request.Context(), c.Writer); err != nil {
		c.String(http.StatusInternalServerError, "报表渲染失败: %s", err.Error())
	}
}

func toProductResponse(p store.Product) productResponse {
	out := productResponse{
		ProductID: p.ProductID,
		Name:      p.Name,
		Query:     p.Query,
		URL:       p.URL,
		Currency:  p.Currency,
		Email:     p.Email,
		Phone:     p.Phone,
	}
	if p.TargetPrice != nil {
		v := p.TargetPrice.StringFixed(2)
		out.TargetPrice = &v
	}
	if p.LastPrice != nil {
		v := p.LastPrice.StringFixed(2)
		out.LastPrice = &v
	}
	if p.LastCheckedAt != nil {
		v := p.LastCheckedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		out.LastCheckedAt = &v
	}
	return out
}
