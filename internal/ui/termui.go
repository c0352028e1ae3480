package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/skalibog/cascade/internal/analysis/aggregator"
	"github.com/skalibog/cascade/internal/config"
	"github.com/skalibog/cascade/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	activeHeaderStyle = headerStyle.
				Background(primaryColor)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
)

// Вкладки просмотрщика
const (
	tabSummary = iota
	tabEvents
	tabTrades
	tabLogs
	tabCount
)

var tabTitles = [tabCount]string{"СВОДКА", "СОБЫТИЯ", "СДЕЛКИ", "ЛОГИ"}

const maxLogLines = 200

// Сообщение с обновленным хвостом лога
type logsMsg []string

// TermUI интерактивный просмотрщик результатов прогона
type TermUI struct {
	config  config.UIConfig
	result  *aggregator.Result
	logFile string
}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	result  *aggregator.Result
	events  []string
	trades  []string
	logs    []string
	logFile string
	tab     int
	offset  [tabCount]int
	width   int
	height  int
}

// NewTermUI создает просмотрщик. logFile - JSON-лог, хвост которого показывается на вкладке логов.
func NewTermUI(cfg config.UIConfig, result *aggregator.Result, logFile string) *TermUI {
	return &TermUI{
		config:  cfg,
		result:  result,
		logFile: logFile,
	}
}

// Run показывает интерфейс до выхода пользователя или отмены контекста
func (ui *TermUI) Run(ctx context.Context) error {
	program := tea.NewProgram(newModel(ui.config, ui.result, ui.logFile), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

func newModel(cfg config.UIConfig, result *aggregator.Result, logFile string) bubbleModel {
	events := result.Detection.Events
	if cfg.MaxEvents > 0 && len(events) > cfg.MaxEvents {
		events = events[:cfg.MaxEvents]
	}
	trades := result.Trades
	if cfg.MaxTrades > 0 && len(trades) > cfg.MaxTrades {
		trades = trades[:cfg.MaxTrades]
	}

	return bubbleModel{
		result: result,
		events: lo.Map(events, func(e models.CascadeEvent, _ int) string {
			return formatEvent(e)
		}),
		trades: lo.Map(trades, func(t models.TradeRecord, _ int) string {
			return formatTrade(t)
		}),
		logFile: logFile,
		width:   120,
		height:  40,
	}
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return m.reloadLogs
}

func (m bubbleModel) reloadLogs() tea.Msg {
	logs, err := readLogTail(m.logFile, maxLogLines)
	if err != nil {
		return logsMsg{fmt.Sprintf("Ошибка загрузки логов: %v", err)}
	}
	return logsMsg(logs)
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right":
			m.tab = (m.tab + 1) % tabCount
		case "shift+tab", "left":
			m.tab = (m.tab + tabCount - 1) % tabCount
		case "up", "k":
			m.offset[m.tab] = max(0, m.offset[m.tab]-1)
		case "down", "j":
			m.offset[m.tab] = min(m.maxOffset(), m.offset[m.tab]+1)
		case "pgdown":
			m.offset[m.tab] = min(m.maxOffset(), m.offset[m.tab]+m.pageSize())
		case "pgup":
			m.offset[m.tab] = max(0, m.offset[m.tab]-m.pageSize())
		case "r":
			return m, m.reloadLogs
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.offset[m.tab] = min(m.maxOffset(), m.offset[m.tab])

	case logsMsg:
		m.logs = msg
		m.offset[tabLogs] = m.maxOffsetOf(len(m.logs))
	}

	return m, nil
}

func (m bubbleModel) View() string {
	tabs := make([]string, tabCount)
	for i, title := range tabTitles {
		style := headerStyle
		if i == m.tab {
			style = activeHeaderStyle
		}
		tabs[i] = style.Render(title)
	}

	var body string
	switch m.tab {
	case tabSummary:
		body = "  " + formatStrategy(m.result.Strategy) + "\n\n" + renderSummary(m.result.Summary)
	case tabEvents:
		body = m.page(m.events, "Событий не обнаружено")
	case tabTrades:
		body = m.page(m.trades, "Сделок нет")
	case tabLogs:
		body = m.page(colorLogs(m.logs), "Логов нет")
	}

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Каскады ликвидаций: результаты бэктеста"),
			"",
			lipgloss.JoinHorizontal(lipgloss.Top, lo.Map(tabs, func(t string, _ int) string { return t + " " })...),
			sectionStyle.Render(body),
			footerStyle.Render("Клавиши: Tab/←/→ - вкладки, ↑/↓/PgUp/PgDn - прокрутка, R - перезагрузить логи, Q - выход"),
		),
	)
}

// page возвращает видимую часть списка текущей вкладки
func (m bubbleModel) page(lines []string, empty string) string {
	if len(lines) == 0 {
		return "  " + empty
	}
	from := min(m.offset[m.tab], len(lines))
	to := min(len(lines), from+m.pageSize())

	var b strings.Builder
	for _, l := range lines[from:to] {
		b.WriteString("  " + l + "\n")
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %d-%d из %d", from+1, to, len(lines))))
	return b.String()
}

// pageSize число строк списка, помещающихся на экран
func (m bubbleModel) pageSize() int {
	return max(1, m.height-14)
}

func (m bubbleModel) maxOffset() int {
	switch m.tab {
	case tabEvents:
		return m.maxOffsetOf(len(m.events))
	case tabTrades:
		return m.maxOffsetOf(len(m.trades))
	case tabLogs:
		return m.maxOffsetOf(len(m.logs))
	}
	return 0
}

func (m bubbleModel) maxOffsetOf(n int) int {
	return max(0, n-m.pageSize())
}

// colorLogs выделяет строки по уровню логирования
func colorLogs(logs []string) []string {
	return lo.Map(logs, func(log string, _ int) string {
		switch {
		case strings.Contains(log, "[ERROR]"):
			return lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			return lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			return lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			return lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		return log
	})
}

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// readLogTail читает последние limit записей JSON-лога в читаемом виде.
// Отсутствующий файл не ошибка.
func readLogTail(path string, limit int) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var logs []string

	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > limit {
			logs = logs[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// formatLogLine превращает JSON-запись zap в строку "[время] [уровень] сообщение (поле: значение)"
func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		// Не удалось распарсить JSON, добавляем как есть
		return line
	}

	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	formatted := fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)

	keys := lo.Filter(lo.Keys(zapLog), func(k string, _ int) bool {
		return k != "level" && k != "ts" && k != "msg" && k != "caller"
	})
	sort.Strings(keys)
	for _, k := range keys {
		formatted += fmt.Sprintf(" (%s: %v)", k, zapLog[k])
	}
	return formatted
}
