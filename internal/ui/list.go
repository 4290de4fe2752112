package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

var (
	_ list.Item = contentItem{}
	_ list.Item = statusItem{}
)

// contentItem wraps [models.Content] with its cached watch status to implement [list.Item].
type contentItem struct {
	content  models.Content
	status   models.WatchStatus
	known    bool
	showType bool
}

func (i contentItem) FilterValue() string { return i.content.Info().Title }
func (i contentItem) Title() string       { return i.content.Info().Title }
func (i contentItem) Description() string {
	info := i.content.Info()
	parts := []string{shared.FormatYear(info.Year), "★ " + shared.FormatRating(info.Rating)}
	if i.showType {
		parts = append([]string{string(i.content.Type())}, parts...)
	}
	if i.known && i.status.Tracked() {
		parts = append(parts, styles.As(i.status.Label(), statusColor(i.status)))
	}
	return strings.Join(parts, " • ")
}

// statusItem is one entry of the status menu. [models.StatusNone] renders as "Clear Status".
type statusItem struct {
	status  models.WatchStatus
	current bool
}

func (i statusItem) FilterValue() string { return i.label() }
func (i statusItem) Title() string {
	if i.current {
		return fmt.Sprintf("%s ✓", i.label())
	}
	return i.label()
}
func (i statusItem) Description() string { return "" }

func (i statusItem) label() string {
	if i.status == models.StatusNone {
		return "Clear Status"
	}
	return i.status.Label()
}

// statusMenuItems lists the tracked statuses followed by "Clear Status" when current is tracked.
func statusMenuItems(current models.WatchStatus) []list.Item {
	items := make([]list.Item, 0, 5)
	for _, s := range models.Statuses() {
		items = append(items, statusItem{status: s, current: s == current})
	}
	if current.Tracked() {
		items = append(items, statusItem{status: models.StatusNone})
	}
	return items
}
