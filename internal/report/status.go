package report

import (
	"fmt"
	"strings"

	"FearGreedTracker/internal/calculator"
	"FearGreedTracker/internal/model"
)

const rule = "=================================================="

// FormatStatus renders the console status view.
func FormatStatus(s model.Summary, d model.Distribution) string {
	var b strings.Builder
	b.WriteString(rule + "\n恐慌贪婪指数 - 当前状态\n" + rule + "\n")

	if s.Count == 0 {
		b.WriteString("\n数据库为空\n")
		return b.String()
	}

	cat := model.CategoryOf(s.LatestValue)
	b.WriteString("\n数据统计:\n")
	b.WriteString(fmt.Sprintf("  最新日期: %s\n", s.LatestDate))
	b.WriteString(fmt.Sprintf("  最新指数: %d (%s / %s)\n", s.LatestValue, cat.Label(), cat))
	b.WriteString(fmt.Sprintf("  7日均值: %.2f\n", s.Avg7d))
	b.WriteString(fmt.Sprintf("  30日均值: %.2f\n", s.Avg30d))
	b.WriteString(fmt.Sprintf("  历史最低: %d (%s)\n", s.Min, s.MinDate))
	b.WriteString(fmt.Sprintf("  历史最高: %d (%s)\n", s.Max, s.MaxDate))
	if pos, err := calculator.Position(s.LatestValue, s.Min, s.Max); err == nil {
		b.WriteString(fmt.Sprintf("  区间位置: %.0f%%\n", pos*100))
	}
	b.WriteString(fmt.Sprintf("  P10/中位数/P90: %.0f / %.0f / %.0f\n", s.P10, s.Median, s.P90))
	b.WriteString(fmt.Sprintf("  总记录数: %d (%s 至 %s)\n", s.Count, s.Earliest, s.LatestDate))

	b.WriteString("\n情绪分布:\n")
	for _, band := range model.Bands {
		b.WriteString(fmt.Sprintf("  %s: %d (%.1f%%)\n", band.Label, d.Count(band.Category), d.Percent(band.Category)))
	}
	return b.String()
}

// FormatSync renders a one-line sync summary.
func FormatSync(r model.SyncResult) string {
	if r.Start == "" {
		return fmt.Sprintf("[%s] %s", r.Mode, r.StatusMessage)
	}
	return fmt.Sprintf("[%s] %s..%s: %s", r.Mode, r.Start, r.End, r.StatusMessage)
}

// FormatGaps renders a gap analysis.
func FormatGaps(g model.GapReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("缺失数据分析 (%s 至 %s): 共 %d 天\n", g.From, g.To, g.Total()))
	b.WriteString(fmt.Sprintf("  周末(正常): %d\n", len(g.Weekends)))
	b.WriteString(fmt.Sprintf("  工作日(需补充): %d\n", len(g.Weekdays)))
	for _, d := range g.Weekdays {
		b.WriteString("    - " + d + "\n")
	}
	return b.String()
}
