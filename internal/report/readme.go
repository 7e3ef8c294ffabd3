// Package report renders the tracker's status document and console views.
package report

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"FearGreedTracker/internal/model"
)

// Data is the input to the README template.
type Data struct {
	Summary      model.Summary
	Distribution model.Distribution
	GeneratedAt  time.Time
}

// badgeColors maps categories to shields.io color names.
var badgeColors = [...]string{"red", "orange", "yellow", "green", "brightgreen"}

// BadgeColor returns the shields.io color for a value.
func BadgeColor(value int) string {
	return badgeColors[model.CategoryOf(value)]
}

type bandRow struct {
	Band    model.Band
	Count   int
	Percent float64
}

var funcs = template.FuncMap{
	"badge": func(s string) string {
		// shields.io uses "-" as a separator; literal dashes are doubled.
		return url.PathEscape(strings.ReplaceAll(s, "-", "--"))
	},
	"bands":    func() []model.Band { return model.Bands },
	"category": func(v int) model.Category { return model.CategoryOf(v) },
	"color":    BadgeColor,
	"f2":       func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"pct":      func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"upper": func(b model.Band) int {
		if b.High > 100 {
			return 100
		}
		return b.High
	},
	"rows": func(d model.Distribution) []bandRow {
		rows := make([]bandRow, len(model.Bands))
		for i, b := range model.Bands {
			rows[i] = bandRow{Band: b, Count: d.Count(b.Category), Percent: d.Percent(b.Category)}
		}
		return rows
	},
}

var readmeTmpl = template.Must(template.New("readme").Funcs(funcs).Parse(`# 恐慌贪婪指数追踪器

{{with .Summary -}}
[![数据更新](https://img.shields.io/badge/{{badge "数据更新"}}-{{badge (or .LatestDate "none")}}-blue)]()
[![记录数量](https://img.shields.io/badge/{{badge "记录数量"}}-{{.Count}}-green)]()
[![当前状态](https://img.shields.io/badge/{{badge "当前状态"}}-{{badge (category .LatestValue).Label}}-{{color .LatestValue}})]()
{{- end}}

自动追踪CNN恐慌贪婪指数，支持定时更新、增量同步和历史版本管理。
{{if gt .Summary.Count 0}}
## 数据统计

### 当前状态

| 指标 | 数值 |
|------|------|
| 最新日期 | {{.Summary.LatestDate}} |
| **最新指数** | **{{.Summary.LatestValue}}** |
| 情绪状态 | {{(category .Summary.LatestValue).Label}} ({{category .Summary.LatestValue}}) |
| 7日均值 | {{f2 .Summary.Avg7d}} |
| 30日均值 | {{f2 .Summary.Avg30d}} |

### 历史极值

| 指标 | 数值 | 日期 |
|------|------|------|
| 历史最低 | {{.Summary.Min}} | {{.Summary.MinDate}} |
| 历史最高 | {{.Summary.Max}} | {{.Summary.MaxDate}} |
| 历史均值 | {{f2 .Summary.Mean}} | - |
| 中位数 | {{f2 .Summary.Median}} | - |

### 分布统计

| 情绪状态 | 天数 | 占比 |
|----------|------|------|
{{range rows .Distribution}}| {{.Band.Label}} ({{.Band.Low}}-{{upper .Band}}) | {{.Count}} | {{pct .Percent}} |
{{end}}{{end}}
## 数据来源

数据来自 [CNN Fear & Greed Index](https://edition.cnn.com/markets/fear-and-greed)。指数范围 0 到 100：

| 指数范围 | 情绪状态 |
|----------|----------|
{{range $b := bands}}| {{$b.Low}}-{{upper $b}} | {{$b.Label}} |
{{end}}
## 更新记录

- 最近更新: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}
- 数据范围: {{or .Summary.Earliest "-"}} 至 {{or .Summary.LatestDate "-"}}

---

*本文档由自动化系统生成，每次数据更新后自动刷新。*
`))

// RenderReadme writes the README markdown for d.
func RenderReadme(w io.Writer, d Data) error {
	if err := readmeTmpl.Execute(w, d); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return nil
}

// WriteReadme renders d to path, replacing the file atomically.
func WriteReadme(path string, d Data) error {
	var buf bytes.Buffer
	if err := RenderReadme(&buf, d); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create readme dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace readme: %w", err)
	}
	return nil
}
