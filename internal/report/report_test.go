package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FearGreedTracker/internal/model"
)

func sampleData() Data {
	var d model.Distribution
	d.Counts[model.ExtremeFear] = 1
	d.Counts[model.Greed] = 1
	d.Total = 2
	return Data{
		Summary: model.Summary{
			Count: 2, Min: 10, MinDate: "2021-01-01", Max: 60, MaxDate: "2021-01-02",
			Mean: 35, LatestDate: "2021-01-02", LatestValue: 60, Avg7d: 35, Avg30d: 35,
			Median: 10, P10: 10, P90: 60, Earliest: "2021-01-01",
		},
		Distribution: d,
		GeneratedAt:  time.Date(2021, 1, 2, 6, 0, 0, 0, time.UTC),
	}
}

func TestRenderReadme(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReadme(&buf, sampleData()))
	out := buf.String()

	assert.Contains(t, out, "2021--01--02-blue")
	assert.Contains(t, out, "-2-green")
	assert.Contains(t, out, "| **最新指数** | **60** |")
	assert.Contains(t, out, "| 历史最低 | 10 | 2021-01-01 |")
	assert.Contains(t, out, "| 历史最高 | 60 | 2021-01-02 |")
	assert.Contains(t, out, "| 贪婪 (55-75) | 1 | 50.0% |")
	assert.Contains(t, out, "| 75-100 | 极度贪婪 |")
	assert.Contains(t, out, "最近更新: 2021-01-02 06:00:00")
}

func TestRenderReadme_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReadme(&buf, Data{GeneratedAt: time.Now()}))
	assert.NotContains(t, buf.String(), "## 数据统计")
	assert.Contains(t, buf.String(), "数据范围: - 至 -")
}

func TestWriteReadme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "README.md")
	require.NoError(t, WriteReadme(path, sampleData()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "# 恐慌贪婪指数追踪器"))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBadgeColor(t *testing.T) {
	tests := []struct {
		value int
		want  string
	}{
		{0, "red"}, {24, "red"}, {25, "orange"}, {45, "yellow"},
		{55, "green"}, {75, "brightgreen"}, {100, "brightgreen"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BadgeColor(tt.value), "value %d", tt.value)
	}
}

func TestFormatStatus(t *testing.T) {
	d := sampleData()
	out := FormatStatus(d.Summary, d.Distribution)
	assert.Contains(t, out, "最新指数: 60 (贪婪 / Greed)")
	assert.Contains(t, out, "区间位置: 100%")
	assert.Contains(t, out, "极度恐惧: 1 (50.0%)")

	assert.Contains(t, FormatStatus(model.Summary{}, model.Distribution{}), "数据库为空")
}

func TestFormatSyncAndGaps(t *testing.T) {
	assert.Equal(t, "[INCREMENTAL] already current",
		FormatSync(model.SyncResult{Mode: model.ModeIncremental, StatusMessage: "already current"}))
	assert.Equal(t, "[FULL] 2021-01-01..2021-01-05: fetched 2 records, 2 changed",
		FormatSync(model.SyncResult{Mode: model.ModeFull, Start: "2021-01-01", End: "2021-01-05", StatusMessage: "fetched 2 records, 2 changed"}))

	out := FormatGaps(model.GapReport{From: "a", To: "b", Weekdays: []string{"2021-01-07"}, Weekends: []string{"x", "y"}})
	assert.Contains(t, out, "共 3 天")
	assert.Contains(t, out, "- 2021-01-07")
}
