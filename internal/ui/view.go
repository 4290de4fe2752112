package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tracker"
)

const summaryWidth = 280

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case BrowseView:
		return m.renderBrowse()
	case DetailView:
		return m.renderDetail()
	case StatusMenuView:
		return m.renderMenu()
	case DashboardView:
		return m.renderDashboard()
	default:
		return ""
	}
}

func tabLabel(t models.ContentType) string {
	p := t.Plural()
	return strings.ToUpper(p[:1]) + p[1:]
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, 3)
	for _, t := range models.ContentTypes() {
		if t == m.kind {
			tabs = append(tabs, styles.active.Render(tabLabel(t)))
		} else {
			tabs = append(tabs, styles.tab.Render(tabLabel(t)))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return "\n" + styles.err.Render(m.notice)
	}
	return "\n" + styles.ok.Render(m.notice)
}

func (m *Model) renderBrowse() string {
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.search.Focused() || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if m.loading {
		fmt.Fprintf(&b, "%s Loading %s...\n", m.spinner.View(), m.kind.Plural())
	}

	b.WriteString(m.browse.View())

	if m.hasMore {
		b.WriteString("\n" + styles.help.Render(fmt.Sprintf("page %d, press n for more", m.page)))
	}
	b.WriteString(m.renderNotice())

	helpKeys := []key.Binding{m.keys.enter, m.keys.nextType, m.keys.search, m.keys.more, m.keys.dashboard, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", b.String(), m.help.ShortHelpView(helpKeys))
}

// describe renders the variant-specific line of the detail view.
func describe(c models.Content) string {
	return models.Match(c,
		func(*models.Movie) string { return "Movie" },
		func(s *models.Show) string {
			if n := s.SeasonCount(); n > 0 {
				return fmt.Sprintf("Show • %d seasons", n)
			}
			return "Show"
		},
		func(a *models.Anime) string {
			parts := []string{"Anime"}
			if a.Episodes != nil {
				parts = append(parts, fmt.Sprintf("%d episodes", *a.Episodes))
			}
			if len(a.Studios) > 0 {
				parts = append(parts, strings.Join(a.Studios, ", "))
			}
			return strings.Join(parts, " • ")
		},
	)
}

func (m *Model) renderStatus() string {
	if m.controller == nil {
		return fmt.Sprintf("%s Loading...", m.spinner.View())
	}

	snap := m.controller.Snapshot()
	line := "Status: " + styles.As(snap.Label(), statusColor(snap.Status))
	if snap.State != tracker.Ready {
		line = m.spinner.View() + " " + line
	}

	if m.controller.ShowProgress() {
		p := snap.Progress
		seasons, episodes := progressBounds(m.selected, p.Season)
		line += fmt.Sprintf("\nSeason %d%s • Episode %d%s", p.Season, outOf(seasons), p.Episode, outOf(episodes))
	}
	return line
}

func outOf(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("/%d", n)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	info := m.selected.Info()

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%s (%s)", info.Title, shared.FormatYear(info.Year))))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s • ★ %s", describe(m.selected), shared.FormatRating(info.Rating))
	if len(info.Genres) > 0 {
		fmt.Fprintf(&b, " • %s", strings.Join(info.Genres, ", "))
	}
	b.WriteString("\n\n")

	if info.Summary != "" {
		b.WriteString(shared.Truncate(info.Summary, summaryWidth))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderNotice())

	helpKeys := []key.Binding{m.keys.status}
	if m.controller != nil && m.controller.ShowProgress() {
		helpKeys = append(helpKeys, m.keys.prevSeason, m.keys.nextSeason, m.keys.prevEpisode, m.keys.nextEpisode)
	}
	if info.WebURL != "" {
		helpKeys = append(helpKeys, m.keys.open)
	}
	helpKeys = append(helpKeys, m.keys.back, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderMenu() string {
	title := ""
	if m.selected != nil {
		title = styles.title.Render(m.selected.Info().Title) + "\n"
	}
	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.back}
	return fmt.Sprintf("%s%s\n\n%s", title, m.menu.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDashboard() string {
	var b strings.Builder
	if m.filter.Focused() || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(m.dashList.View())
	b.WriteString(m.renderNotice())

	filterKey := key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter"))
	helpKeys := []key.Binding{m.keys.enter, filterKey, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", b.String(), m.help.ShortHelpView(helpKeys))
}
