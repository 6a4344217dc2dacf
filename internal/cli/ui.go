package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"agency-site/internal/session"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#90A4AE")).Italic(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")).Width(12)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// toaster prints notifications as single styled lines.
type toaster struct {
	w io.Writer
}

func (t toaster) Success(msg string) {
	fmt.Fprintln(t.w, successStyle.Render("✓ "+msg))
}

func (t toaster) Error(msg string) {
	fmt.Fprintln(t.w, errorStyle.Render("✗ "+msg))
}

// navigator turns route changes into hints about the next command.
type navigator struct {
	w io.Writer
}

func (n navigator) Navigate(route string) {
	var hint string
	switch route {
	case session.RouteAuth:
		hint = "next: agencyctl signin --email <email>"
	case session.RouteBuilding:
		hint = "track it with: agencyctl requests list"
	default:
		return
	}
	fmt.Fprintln(n.w, hintStyle.Render(hint))
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, hintStyle.Render("nothing to show"))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatBudget(b *float64) string {
	if b == nil {
		return ""
	}
	return "$" + strconv.FormatFloat(*b, 'f', -1, 64)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
