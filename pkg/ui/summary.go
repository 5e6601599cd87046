package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"cityharvest/pkg/harvest"
)

var (
	accent = lipgloss.Color("#00AFAF")
	muted  = lipgloss.Color("#8A8A8A")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D70000")).
			Bold(true)
)

// RenderSummary renders a run summary as a bordered panel. A non-nil err is
// shown below the counters.
func RenderSummary(city harvest.City, sum harvest.Summary, err error) string {
	rows := [][2]string{
		{"run", sum.RunID},
		{"city", fmt.Sprintf("%s (%d)", city.Name, city.ID)},
		{"work items", fmt.Sprint(sum.WorkItems)},
		{"pages", fmt.Sprint(sum.Pages)},
		{"fetched", fmt.Sprint(sum.Fetched)},
		{"inserted", fmt.Sprint(sum.Inserted)},
		{"duplicates", fmt.Sprint(sum.Duplicates)},
		{"skipped", fmt.Sprint(sum.Skipped)},
	}
	if sum.Harvester == "photos" {
		rows = append(rows, [2]string{"albums resolved", fmt.Sprint(sum.AlbumsResolved)})
	}
	rows = append(rows, [2]string{"duration", sum.Duration.Round(time.Millisecond).String()})

	lines := []string{titleStyle.Render("harvest " + sum.Harvester)}
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(row[0]), valueStyle.Render(row[1])))
	}
	if err != nil {
		lines = append(lines, "", failStyle.Render("aborted: ")+err.Error())
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

// PrintSummary writes RenderSummary to w
func PrintSummary(w io.Writer, city harvest.City, sum harvest.Summary, err error) {
	fmt.Fprintln(w, RenderSummary(city, sum, err))
}
