// package formatter exports watchlist aggregates to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// Format is an export format name.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists the supported export formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}
}

// ParseFormat accepts a format name or a common alias ("md", "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension is the file extension for the format, without a dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// group is one non-empty (type, status) list in display order.
type group struct {
	Type   models.ContentType
	Status models.WatchStatus
	Items  []models.Content
}

func groups(agg models.ContentByStatus) []group {
	var out []group
	for _, t := range models.ContentTypes() {
		for _, s := range models.Statuses() {
			if items := agg.Items(t, s); len(items) > 0 {
				out = append(out, group{Type: t, Status: s, Items: items})
			}
		}
	}
	return out
}

func typeTitle(t models.ContentType) string {
	switch t {
	case models.ContentMovie:
		return "Movies"
	case models.ContentShow:
		return "Shows"
	case models.ContentAnime:
		return "Anime"
	default:
		return string(t)
	}
}

// ExportToJSON renders the aggregate in its wire shape.
func ExportToJSON(agg models.ContentByStatus) ([]byte, error) {
	return shared.MarshalJSON(agg, true)
}

// ExportToCSV converts the aggregate to CSV with columns: Type, Status, ID, Title, Year, Rating, URL
func ExportToCSV(agg models.ContentByStatus) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Type", "Status", "ID", "Title", "Year", "Rating", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, g := range groups(agg) {
		for _, c := range g.Items {
			info := c.Info()
			year := ""
			if info.Year != nil {
				year = strconv.Itoa(*info.Year)
			}
			record := []string{
				string(g.Type),
				string(g.Status),
				info.ID,
				info.Title,
				year,
				strconv.FormatFloat(info.Rating, 'f', 1, 64),
				info.WebURL,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// detail is the type-specific suffix shown after a title.
func detail(c models.Content) string {
	return models.Match(c,
		func(*models.Movie) string { return "" },
		func(s *models.Show) string {
			if n := s.SeasonCount(); n > 0 {
				return fmt.Sprintf(", %d seasons", n)
			}
			return ""
		},
		func(a *models.Anime) string {
			if a.Episodes != nil {
				return fmt.Sprintf(", %d episodes", *a.Episodes)
			}
			return ""
		},
	)
}

// ExportToMarkdown converts the aggregate to Markdown, one section per content type.
func ExportToMarkdown(agg models.ContentByStatus) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Watchlist\n\n")
	buf.WriteString(fmt.Sprintf("**Tracked**: %d\n", trackedCount(agg)))

	var current models.ContentType
	for _, g := range groups(agg) {
		if g.Type != current {
			buf.WriteString(fmt.Sprintf("\n## %s\n", typeTitle(g.Type)))
			current = g.Type
		}
		buf.WriteString(fmt.Sprintf("\n### %s (%d)\n\n", g.Status.Label(), len(g.Items)))
		for i, c := range g.Items {
			info := c.Info()
			title := info.Title
			if info.WebURL != "" {
				title = fmt.Sprintf("[%s](%s)", info.Title, info.WebURL)
			}
			buf.WriteString(fmt.Sprintf("%d. %s (%s) ★ %s%s\n",
				i+1, title, shared.FormatYear(info.Year), shared.FormatRating(info.Rating), detail(c)))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts the aggregate to plain text
func ExportToText(agg models.ContentByStatus) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracked: %d\n", trackedCount(agg)))
	for _, g := range groups(agg) {
		buf.WriteString(fmt.Sprintf("\n%s / %s\n", typeTitle(g.Type), g.Status.Label()))
		for i, c := range g.Items {
			info := c.Info()
			buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, info.Title, shared.FormatYear(info.Year)))
		}
	}

	return buf.Bytes(), nil
}

func trackedCount(agg models.ContentByStatus) int {
	n := 0
	for _, g := range groups(agg) {
		n += len(g.Items)
	}
	return n
}

// Export renders agg in format f.
func Export(agg models.ContentByStatus, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(agg)
	case FormatCSV:
		return ExportToCSV(agg)
	case FormatMarkdown:
		return ExportToMarkdown(agg)
	case FormatText:
		return ExportToText(agg)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteExport renders agg and writes it to path, creating parent directories.
//
// Defaults to watchlist.{ext} in the working directory.
func WriteExport(agg models.ContentByStatus, f Format, path string) (string, error) {
	if path == "" {
		path = "watchlist." + f.Extension()
	}

	data, err := Export(agg, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
