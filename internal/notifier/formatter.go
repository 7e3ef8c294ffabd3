package notifier

import (
	"fmt"
	"html"
	"strings"

	"FearGreedTracker/internal/model"
)

// FormatUpdateReport formats an update pipeline result into a Telegram message.
func FormatUpdateReport(res *model.UpdateResult, s model.Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>恐慌贪婪指数更新</b> | %s\n\n", res.StartedAt.Format("2006-01-02")))

	if res.Err != nil {
		b.WriteString(fmt.Sprintf("❌ 更新失败: %s\n", html.EscapeString(res.Err.Error())))
	} else if res.Sync != nil {
		b.WriteString(fmt.Sprintf("数据更新: %s\n", html.EscapeString(res.Sync.StatusMessage)))
	}

	if latest, ok := s.Latest(); ok {
		cat := latest.Category()
		b.WriteString(fmt.Sprintf("\n最新指数: <b>%d</b> (%s)\n", latest.Value, cat.Label()))
		b.WriteString(fmt.Sprintf("日期: %s\n", latest.Date))
		b.WriteString(fmt.Sprintf("7日均值: %.2f | 30日均值: %.2f\n", s.Avg7d, s.Avg30d))
		b.WriteString(fmt.Sprintf("历史区间: %d (%s) ~ %d (%s)\n", s.Min, s.MinDate, s.Max, s.MaxDate))
	}

	if len(res.Backups) > 0 || res.Committed {
		b.WriteString(fmt.Sprintf("\n备份文件: %d 个 | Git提交: %s\n", len(res.Backups), yesNo(res.Committed)))
	}
	return b.String()
}

// FormatStatusMessage formats the /status reply.
func FormatStatusMessage(s model.Summary, d model.Distribution) string {
	latest, ok := s.Latest()
	if !ok {
		return "📭 暂无数据"
	}
	var b strings.Builder
	cat := latest.Category()
	b.WriteString(fmt.Sprintf("📈 <b>当前状态</b> | %s\n\n", latest.Date))
	b.WriteString(fmt.Sprintf("最新指数: <b>%d</b> (%s)\n", latest.Value, cat.Label()))
	b.WriteString(fmt.Sprintf("7日均值: %.2f | 30日均值: %.2f\n", s.Avg7d, s.Avg30d))
	b.WriteString(fmt.Sprintf("总记录数: %d\n\n", s.Count))
	for _, band := range model.Bands {
		b.WriteString(fmt.Sprintf("  %s: %d (%.1f%%)\n", band.Label, d.Count(band.Category), d.Percent(band.Category)))
	}
	return b.String()
}

func yesNo(ok bool) string {
	if ok {
		return "成功"
	}
	return "跳过"
}
