package ui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/skalibog/cascade/internal/analysis/aggregator"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/market/markettest"
	"github.com/skalibog/cascade/internal/sweep"
	"github.com/skalibog/cascade/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cascadeResult(t *testing.T) *aggregator.Result {
	t.Helper()
	price, volume := markettest.Cascade(300, 200)
	result, err := aggregator.NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "A")
	require.NoError(t, err)
	return result
}

func TestRenderReport(t *testing.T) {
	report := RenderReport(cascadeResult(t), config.UIConfig{MaxTrades: 2, MaxEvents: 10})

	assert.Contains(t, report, "СВОДКА")
	assert.Contains(t, report, "СОБЫТИЯ (3)")
	assert.Contains(t, report, "СДЕЛКИ (3)")
	assert.Contains(t, report, "... еще 1")
	assert.Contains(t, report, "2024-01-09 08:00")
	assert.Contains(t, report, "cascade_drop=0.030")
}

func TestRenderReportEmpty(t *testing.T) {
	price, volume := markettest.Baseline(300, "A", "B", "C")
	result, err := aggregator.NewAnalyzer(config.DefaultStrategy(), config.DefaultBacktest()).Run(price, volume, "A")
	require.NoError(t, err)

	report := RenderReport(result, config.UIConfig{})
	assert.Contains(t, report, "Событий не обнаружено")
	assert.Contains(t, report, "Сделок нет")
	assert.Contains(t, report, "(вырожден)")
	assert.Contains(t, report, "н/д")
}

func TestSummaryLines(t *testing.T) {
	lines := summaryLines(&models.PerformanceSummary{
		TradeCount:  12,
		TotalReturn: 0.1234,
		MaxDrawdown: -0.05,
		Beta:        0.8,
	})

	values := make(map[string]string, len(lines))
	for _, l := range lines {
		values[l[0]] = l[1]
	}
	assert.Equal(t, "12", values["Сделок"])
	assert.Equal(t, "12.34%", values["Суммарная доходность"])
	assert.Equal(t, "-5.00%", values["Макс. просадка"])
	assert.Equal(t, "0.8000", values["Beta"])
}

func TestRenderSweep(t *testing.T) {
	table := RenderSweep([]sweep.Point{
		{Strategy: config.DefaultStrategy(), Events: 7, Summary: models.PerformanceSummary{TradeCount: 5, SharpeRatio: 1.5}},
	})
	assert.Contains(t, table, "РЕЗУЛЬТАТЫ (1)")
	assert.Contains(t, table, "0.050")
	assert.Contains(t, table, "1.50")

	assert.Contains(t, RenderSweep(nil), "Нет результатов")
}

func TestFormatLogLine(t *testing.T) {
	line := `{"level":"INFO","ts":"01.02.2024 - 10:15:30.000000000+00:00","caller":"x.go:1","msg":"Симуляция завершена","сделок":3,"a":"b"}`
	assert.Equal(t, "[10:15:30] [INFO] Симуляция завершена (a: b) (сделок: 3)", formatLogLine(line))
	assert.Equal(t, "не json", formatLogLine("не json"))
}

func TestReadLogTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json.log")

	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(`{"level":"DEBUG","msg":"строка"}` + "\n")
	}
	b.WriteString(`{"level":"WARN","msg":"последняя"}` + "\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	logs, err := readLogTail(path, 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "[] [WARN] последняя", logs[2])

	logs, err = readLogTail(filepath.Join(t.TempDir(), "missing.log"), 3)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestModelNavigation(t *testing.T) {
	m := newModel(config.UIConfig{}, cascadeResult(t), "")
	m.height = 15 // страница в одну строку

	press := func(m bubbleModel, key tea.KeyMsg) bubbleModel {
		next, _ := m.Update(key)
		return next.(bubbleModel)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, tabEvents, m.tab)

	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.offset[tabEvents])

	m = press(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.offset[tabEvents])
	assert.Contains(t, m.View(), "2-2 из 3")

	m = press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, tabLogs, m.tab)

	next, _ := m.Update(logsMsg{"[] [INFO] a", "[] [INFO] b"})
	m = next.(bubbleModel)
	assert.Equal(t, 1, m.offset[tabLogs])

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.NotNil(t, cmd)
}

func TestModelTruncatesLists(t *testing.T) {
	m := newModel(config.UIConfig{MaxTrades: 1, MaxEvents: 2}, cascadeResult(t), "")
	assert.Len(t, m.trades, 1)
	assert.Len(t, m.events, 2)
	assert.Contains(t, m.View(), "СВОДКА")
}
