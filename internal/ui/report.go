package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/analysis/aggregator"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/internal/sweep"
	"github.com/skalibog/cascade/pkg/models"
)

const timeLayout = "2006-01-02 15:04"

// summaryLines форматирует сводку в пары "название: значение"
func summaryLines(s *models.PerformanceSummary) [][2]string {
	sharpe := fmt.Sprintf("%.2f", s.SharpeRatio)
	if s.SharpeDegenerate {
		sharpe += " (вырожден)"
	}
	regression := func(format string, v float64) string {
		if s.RegressionSkipped {
			return "н/д"
		}
		return fmt.Sprintf(format, v)
	}

	return [][2]string{
		{"Сделок", fmt.Sprintf("%d", s.TradeCount)},
		{"Период, дней", fmt.Sprintf("%.1f", s.PeriodDays)},
		{"Сделок в год", fmt.Sprintf("%.1f", s.TradesPerYear)},
		{"Суммарная доходность", percent(s.TotalReturn)},
		{"Средняя доходность", percent(s.MeanReturn)},
		{"Годовая доходность", percent(s.AnnualizedReturn)},
		{"Годовая волатильность", percent(s.AnnualizedVol)},
		{"Sharpe", sharpe},
		{"Макс. просадка", percent(s.MaxDrawdown)},
		{"Доля прибыльных", percent(s.WinRate)},
		{"Быстрых / медленных выходов", fmt.Sprintf("%d / %d", s.FastExits, s.SlowExits)},
		{"Alpha (год)", regression("%.4f", s.Alpha)},
		{"Beta", regression("%.4f", s.Beta)},
		{"R²", regression("%.4f", s.RSquared)},
		{"Точек регрессии", fmt.Sprintf("%d", s.AlignedSamples)},
	}
}

func renderSummary(s *models.PerformanceSummary) string {
	lines := summaryLines(s)
	width := lo.Max(lo.Map(lines, func(l [2]string, _ int) int {
		return lipgloss.Width(l[0])
	}))

	var b strings.Builder
	for _, l := range lines {
		label := labelStyle.Width(width + 2).Render(l[0] + ":")
		b.WriteString("  " + label + " " + valueStyle(l).Render(l[1]) + "\n")
	}
	return b.String()
}

// valueStyle подсвечивает знак доходностей
func valueStyle(line [2]string) lipgloss.Style {
	switch {
	case strings.HasPrefix(line[1], "-"):
		return lipgloss.NewStyle().Foreground(errorColor)
	case strings.HasSuffix(line[1], "%") && line[1] != "0.00%":
		return lipgloss.NewStyle().Foreground(successColor)
	default:
		return lipgloss.NewStyle()
	}
}

func formatTrade(t models.TradeRecord) string {
	return fmt.Sprintf("%s  %-12s  удержание %d  валовая %8s  чистая %8s",
		t.EntryTime.UTC().Format(timeLayout), t.Symbol, t.HoldingPeriod,
		percent(t.GrossReturn), percent(t.NetReturn))
}

func formatEvent(e models.CascadeEvent) string {
	return fmt.Sprintf("%s  %-12s  %-8s  r1 %8s  r2 %8s  объем %.0f (порог %.0f)  активов %d",
		e.Timestamp.UTC().Format(timeLayout), e.Symbol, e.Pattern,
		percent(e.Return1), percent(e.Return2), e.Volume, e.VolumeHigh, e.AssetsCount)
}

// RenderReport строит неинтерактивный отчет о прогоне
func RenderReport(result *aggregator.Result, cfg config.UIConfig) string {
	sections := []string{
		titleStyle.Render("Каскады ликвидаций: результаты бэктеста"),
		section("ПАРАМЕТРЫ", "  "+formatStrategy(result.Strategy)+"\n"),
		section("СВОДКА", renderSummary(result.Summary)),
		section(fmt.Sprintf("СОБЫТИЯ (%d)", len(result.Detection.Events)),
			renderList(lo.Map(result.Detection.Events, func(e models.CascadeEvent, _ int) string {
				return formatEvent(e)
			}), cfg.MaxEvents, "Событий не обнаружено")),
		section(fmt.Sprintf("СДЕЛКИ (%d)", len(result.Trades)),
			renderList(lo.Map(result.Trades, func(t models.TradeRecord, _ int) string {
				return formatTrade(t)
			}), cfg.MaxTrades, "Сделок нет")),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderSweep строит таблицу результатов перебора параметров
func RenderSweep(points []sweep.Point) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %-4s %-12s %-12s %-10s %-8s %-8s %-10s %-10s %-10s\n",
		"#", "initial", "cascade", "min_assets", "событий", "сделок", "итог", "sharpe", "просадка"))
	for i, p := range points {
		b.WriteString(fmt.Sprintf("  %-4d %-12.3f %-12.3f %-10d %-8d %-8d %-10s %-10.2f %-10s\n",
			i+1, p.Strategy.InitialDrop, p.Strategy.CascadeDrop, p.Strategy.MinAssets,
			p.Events, p.Summary.TradeCount, percent(p.Summary.TotalReturn),
			p.Summary.SharpeRatio, percent(p.Summary.MaxDrawdown)))
	}
	if len(points) == 0 {
		b.WriteString("  Нет результатов\n")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Перебор параметров"),
		section(fmt.Sprintf("РЕЗУЛЬТАТЫ (%d)", len(points)), b.String()),
	)
}

func formatStrategy(s config.StrategyConfig) string {
	return fmt.Sprintf("initial_drop=%.3f cascade_drop=%.3f min_assets=%d окно=%d перцентили=%.0f/%.0f",
		s.InitialDrop, s.CascadeDrop, s.MinAssets, s.RollingWindow, s.VolPercentileHigh, s.VolPercentileMid)
}

func renderList(lines []string, limit int, empty string) string {
	if len(lines) == 0 {
		return "  " + empty + "\n"
	}

	var b strings.Builder
	shown := lines
	if limit > 0 && len(lines) > limit {
		shown = lines[:limit]
	}
	for _, l := range shown {
		b.WriteString("  " + l + "\n")
	}
	if len(shown) < len(lines) {
		b.WriteString(fmt.Sprintf("  ... еще %d\n", len(lines)-len(shown)))
	}
	return b.String()
}

func section(title, content string) string {
	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render(title),
			content,
		),
	)
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
