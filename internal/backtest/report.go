package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Summary 返回适合终端与 Telegram 的多行摘要。
func Summary(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backtest %s (%s)\n", res.Symbol, res.Strategy)
	fmt.Fprintf(&b, "Period: %s ~ %s (%d bars)\n", res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339), res.Bars)
	fmt.Fprintf(&b, "Equity: %s -> %s\n", res.InitialCash.StringFixed(2), res.FinalEquity.StringFixed(2))
	fmt.Fprintf(&b, "Return: %.2f%%  MaxDD: %.2f%%\n", res.TotalReturn*100, res.MaxDrawdown*100)
	fmt.Fprintf(&b, "Trades: %d  Errors: %d", res.TradeCount, res.Errors)
	if len(res.Rejections) > 0 {
		keys := make([]string, 0, len(res.Rejections))
		for k := range res.Rejections {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, res.Rejections[k]))
		}
		fmt.Fprintf(&b, "\nRejected: %s", strings.Join(parts, " "))
	}
	return b.String()
}

// WriteReport 把结果写入 dir，返回生成的文件路径。
// yaml 只写摘要；json 包含权益曲线与成交明细。chart 为 true 时额外生成 HTML 图表。
func WriteReport(dir, format string, res Result, chart bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	base := fmt.Sprintf("backtest_%s_%s_%s", strings.ToLower(res.Symbol), res.Start.Format("20060102"), uuid.NewString()[:8])

	var (
		data []byte
		err  error
		ext  string
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatYAML:
		data, err = yaml.Marshal(res)
		ext = ".yaml"
	case FormatJSON:
		data, err = json.MarshalIndent(res, "", "  ")
		ext = ".json"
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	paths := []string{filepath.Join(dir, base+ext)}
	if err := os.WriteFile(paths[0], data, 0o644); err != nil {
		return nil, err
	}
	if chart {
		p := filepath.Join(dir, base+".html")
		f, err := os.Create(p)
		if err != nil {
			return paths, err
		}
		if err := RenderChart(f, res); err != nil {
			f.Close()
			return paths, err
		}
		if err := f.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
