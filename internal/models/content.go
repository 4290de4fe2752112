package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlaceholderPoster is substituted whenever a provider has no artwork for an item.
const PlaceholderPoster = "/placeholder.svg?height=450&width=300"

// ContentType is the closed set of catalog kinds.
type ContentType string

const (
	ContentMovie ContentType = "movie"
	ContentShow  ContentType = "show"
	ContentAnime ContentType = "anime"
)

// ContentTypes lists every content type in display order.
func ContentTypes() []ContentType {
	return []ContentType{ContentMovie, ContentShow, ContentAnime}
}

// ParseContentType accepts singular or plural forms ("movie", "movies").
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return ContentMovie, nil
	case "show", "shows", "tv":
		return ContentShow, nil
	case "anime":
		return ContentAnime, nil
	}
	return "", fmt.Errorf("invalid content type %q", s)
}

// Plural is the key used for this type in aggregate payloads.
func (t ContentType) Plural() string {
	switch t {
	case ContentMovie:
		return "movies"
	case ContentShow:
		return "shows"
	default:
		return string(t)
	}
}

func (t ContentType) Valid() bool {
	return t == ContentMovie || t == ContentShow || t == ContentAnime
}

// HasProgress reports whether season/episode progress is tracked for this type.
func (t ContentType) HasProgress() bool {
	return t == ContentShow || t == ContentAnime
}

// Content is a catalog item. The set of implementations is closed: [*Movie], [*Show] and [*Anime].
type Content interface {
	Type() ContentType
	Info() *Base
	isContent()
}

// Base holds the fields every content type shares.
type Base struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	PosterURL string   `json:"posterUrl"`
	Rating    float64  `json:"rating"`
	Year      *int     `json:"year,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	// WebURL links to the provider's page for the item.
	WebURL string `json:"webUrl,omitempty"`
}

func (b *Base) Info() *Base { return b }

type Movie struct {
	Base
}

type Show struct {
	Base
	Seasons         []Season `json:"seasons,omitempty"`
	NumberOfSeasons int      `json:"numberOfSeasons,omitempty"`
}

type Season struct {
	SeasonNumber int    `json:"seasonNumber"`
	EpisodeCount int    `json:"episodeCount"`
	Name         string `json:"name"`
}

type Anime struct {
	Base
	Episodes *int     `json:"episodes,omitempty"`
	Studios  []string `json:"studios,omitempty"`
}

func (*Movie) Type() ContentType { return ContentMovie }
func (*Show) Type() ContentType  { return ContentShow }
func (*Anime) Type() ContentType { return ContentAnime }

func (*Movie) isContent() {}
func (*Show) isContent()  {}
func (*Anime) isContent() {}

// EpisodeCount returns the episode count for season when the provider reported one.
func (s *Show) EpisodeCount(season int) (int, bool) {
	for _, se := range s.Seasons {
		if se.SeasonNumber == season && se.EpisodeCount > 0 {
			return se.EpisodeCount, true
		}
	}
	return 0, false
}

// SeasonCount prefers the provider-reported total, falling back to the season list.
func (s *Show) SeasonCount() int {
	if s.NumberOfSeasons > 0 {
		return s.NumberOfSeasons
	}
	return len(s.Seasons)
}

// ContentVisitor handles each content variant. Adding a variant breaks every visitor at compile time.
type ContentVisitor[R any] interface {
	Movie(*Movie) R
	Show(*Show) R
	Anime(*Anime) R
}

// Visit dispatches c to the matching visitor method.
func Visit[R any](c Content, v ContentVisitor[R]) R {
	switch c := c.(type) {
	case *Movie:
		return v.Movie(c)
	case *Show:
		return v.Show(c)
	case *Anime:
		return v.Anime(c)
	}
	panic(fmt.Sprintf("models: unhandled content %T", c))
}

// Match is [Visit] with one function per variant.
func Match[R any](c Content, movie func(*Movie) R, show func(*Show) R, anime func(*Anime) R) R {
	return Visit[R](c, funcVisitor[R]{movie, show, anime})
}

type funcVisitor[R any] struct {
	movie func(*Movie) R
	show  func(*Show) R
	anime func(*Anime) R
}

func (f funcVisitor[R]) Movie(m *Movie) R { return f.movie(m) }
func (f funcVisitor[R]) Show(s *Show) R   { return f.show(s) }
func (f funcVisitor[R]) Anime(a *Anime) R { return f.anime(a) }

// NewContent returns an empty value of the variant for t.
func NewContent(t ContentType) (Content, error) {
	switch t {
	case ContentMovie:
		return &Movie{}, nil
	case ContentShow:
		return &Show{}, nil
	case ContentAnime:
		return &Anime{}, nil
	}
	return nil, fmt.Errorf("invalid content type %q", t)
}

// MarshalContent encodes c with a "type" discriminator alongside its fields.
func MarshalContent(c Content) ([]byte, error) {
	v := Match(c,
		func(m *Movie) any {
			return struct {
				Type ContentType `json:"type"`
				*Movie
			}{m.Type(), m}
		},
		func(s *Show) any {
			return struct {
				Type ContentType `json:"type"`
				*Show
			}{s.Type(), s}
		},
		func(a *Anime) any {
			return struct {
				Type ContentType `json:"type"`
				*Anime
			}{a.Type(), a}
		},
	)
	return json.Marshal(v)
}

// UnmarshalContent decodes a value produced by [MarshalContent].
func UnmarshalContent(data []byte) (Content, error) {
	var head struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	c, err := NewContent(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Normalize fills the poster placeholder so rendering never sees an empty URL.
func Normalize(c Content) Content {
	if b := c.Info(); strings.TrimSpace(b.PosterURL) == "" {
		b.PosterURL = PlaceholderPoster
	}
	return c
}

// Page is one page of catalog results.
type Page struct {
	Items      []Content
	Page       int
	TotalPages int // 0 when the provider does not report totals
	HasMore    bool
}
