package report

import (
	"context"
	"fmt"
	"io"

	"dealradar/internal/store"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// 中文说明：
// 报表：每个产品一张价格历史折线 + 最近 run 的结局分布柱状图。
// 纯展示层，消费的都是已经算好的数据，渲染失败不影响主流水线。

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorPrice         = "#3b82f6"
	colorTarget        = "#fbbf24"
	colorNotified      = "#34d399"
	colorSuppressed    = "#a78bfa"
	colorFailed        = "#f87171"

	chartWidthPx  = 1200
	chartHeightPx = 420

	historyLimit = 90
	runsLimit    = 30
)

type Generator struct {
	store *store.Store
}

func New(st *store.Store) *Generator {
	return &Generator{store: st}
}

// RenderHTML 输出完整报表页面。
func (g *Generator) RenderHTML(ctx context.Context, w io.Writer) error {
	products, err := g.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("读取产品列表失败: %w", err)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = "DealRadar 价格报表"

	for _, p := range products {
		points, err := g.store.ListPricePoints(ctx, p.ProductID, historyLimit)
		if err != nil || len(points) < 2 {
			continue
		}
		page.AddCharts(buildPriceChart(p, points))
	}

	runs, err := g.store.ListRuns(ctx, runsLimit)
	if err == nil && len(runs) > 0 {
		page.AddCharts(buildRunsChart(runs))
	}

	if len(page.Charts) == 0 {
		_, werr := io.WriteString(w, "<html><body><p>暂无可展示的数据</p></body></html>")
		return werr
	}
	return page.Render(w)
}

func buildPriceChart(p store.Product, points []store.PricePoint) *charts.Line {
	line := charts.NewLine()
	subtitle := ""
	if p.TargetPrice != nil {
		subtitle = fmt.Sprintf("目标价 %s %s", p.Currency, p.TargetPrice.StringFixed(2))
	}
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s (%s)", p.Name, p.ProductID),
			Subtitle:      subtitle,
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 16},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	xAxis := make([]string, len(points))
	priceData := make([]opts.LineData, len(points))
	for i, pt := range points {
		xAxis[i] = pt.ObservedAt.UTC().Format("01-02 15:04")
		priceData[i] = opts.LineData{Value: pt.Price.InexactFloat64()}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Price", priceData,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorPrice, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	)

	if p.TargetPrice != nil {
		target := p.TargetPrice.InexactFloat64()
		targetData := make([]opts.LineData, len(points))
		for i := range points {
			targetData[i] = opts.LineData{Value: target}
		}
		line.AddSeries("Target", targetData,
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorTarget, Width: 1, Type: "dashed"}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}

func buildRunsChart(runs []store.RunRecord) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "最近巡检结局分布",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 16},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)

	// ListRuns 按时间倒序返回，报表按时间正序画
	xAxis := make([]string, 0, len(runs))
	notified := make([]opts.BarData, 0, len(runs))
	suppressed := make([]opts.BarData, 0, len(runs))
	failed := make([]opts.BarData, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		xAxis = append(xAxis, r.StartedAt.UTC().Format("01-02 15:04"))
		notified = append(notified, opts.BarData{Value: r.Notified, ItemStyle: &opts.ItemStyle{Color: colorNotified}})
		suppressed = append(suppressed, opts.BarData{Value: r.Suppressed, ItemStyle: &opts.ItemStyle{Color: colorSuppressed}})
		failed = append(failed, opts.BarData{
			Value:     r.ExtractionFailed + r.StoreFailed,
			ItemStyle: &opts.ItemStyle{Color: colorFailed},
		})
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Notified", notified)
	bar.AddSeries("Suppressed", suppressed)
	bar.AddSeries("Failed", failed)
	return bar
}
