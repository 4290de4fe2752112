package formatter

import (
	"strings"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/sahilm/fuzzy"
)

// titleSource adapts a content slice to [fuzzy.Source] over lowercase titles.
type titleSource []models.Content

func (s titleSource) String(i int) string { return strings.ToLower(s[i].Info().Title) }
func (s titleSource) Len() int            { return len(s) }

// FilterItems returns the items whose title fuzzy-matches pattern, best match first.
// A blank pattern returns items unchanged.
func FilterItems(items []models.Content, pattern string) []models.Content {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return items
	}

	matches := fuzzy.FindFrom(pattern, titleSource(items))
	out := make([]models.Content, len(matches))
	for i, m := range matches {
		out[i] = items[m.Index]
	}
	return out
}

// Filter narrows every (type, status) group of agg to fuzzy title matches.
// Groups are kept, possibly empty, so the result has the same shape as agg.
func Filter(agg models.ContentByStatus, pattern string) models.ContentByStatus {
	if strings.TrimSpace(pattern) == "" {
		return agg
	}

	out := models.NewContentByStatus()
	for _, byStatus := range agg {
		for s, items := range byStatus {
			for _, c := range FilterItems(items, pattern) {
				out.Add(s, c)
			}
		}
	}
	return out
}

// OnlyType returns the part of agg for t.
func OnlyType(agg models.ContentByStatus, t models.ContentType) models.ContentByStatus {
	out := models.NewContentByStatus()
	for _, s := range models.AllStatuses() {
		for _, c := range agg.Items(t, s) {
			out.Add(s, c)
		}
	}
	return out
}
