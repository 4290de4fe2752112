package models

import (
	"encoding/json"
	"testing"
)

func intPtr(n int) *int { return &n }

type labelVisitor struct{}

func (labelVisitor) Movie(m *Movie) string { return "movie:" + m.Title }
func (labelVisitor) Show(s *Show) string   { return "show:" + s.Title }
func (labelVisitor) Anime(a *Anime) string { return "anime:" + a.Title }

func TestContent(t *testing.T) {
	t.Run("Visit dispatches each variant", func(t *testing.T) {
		items := []Content{
			&Movie{Base: Base{ID: "603", Title: "The Matrix"}},
			&Show{Base: Base{ID: "1399", Title: "Game of Thrones"}},
			&Anime{Base: Base{ID: "5114", Title: "Fullmetal Alchemist"}},
		}
		want := []string{"movie:The Matrix", "show:Game of Thrones", "anime:Fullmetal Alchemist"}

		for i, c := range items {
			if got := Visit[string](c, labelVisitor{}); got != want[i] {
				t.Errorf("Visit() = %q, want %q", got, want[i])
			}
		}
	})

	t.Run("Normalize applies placeholder", func(t *testing.T) {
		c := Normalize(&Movie{Base: Base{ID: "1", PosterURL: "  "}})
		if c.Info().PosterURL != PlaceholderPoster {
			t.Errorf("expected placeholder, got %q", c.Info().PosterURL)
		}

		kept := Normalize(&Movie{Base: Base{ID: "2", PosterURL: "https://image.tmdb.org/t/p/w500/a.jpg"}})
		if kept.Info().PosterURL != "https://image.tmdb.org/t/p/w500/a.jpg" {
			t.Errorf("expected poster to be kept, got %q", kept.Info().PosterURL)
		}
	})

	t.Run("MarshalContent round trip keeps variant", func(t *testing.T) {
		show := &Show{
			Base:            Base{ID: "1399", Title: "Game of Thrones", PosterURL: PlaceholderPoster, Rating: 8.4, Year: intPtr(2011)},
			Seasons:         []Season{{SeasonNumber: 1, EpisodeCount: 10, Name: "Season 1"}},
			NumberOfSeasons: 8,
		}

		data, err := MarshalContent(show)
		if err != nil {
			t.Fatalf("MarshalContent() error = %v", err)
		}

		var head map[string]any
		if err := json.Unmarshal(data, &head); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if head["type"] != "show" || head["title"] != "Game of Thrones" {
			t.Errorf("expected flattened fields with type, got %v", head)
		}

		decoded, err := UnmarshalContent(data)
		if err != nil {
			t.Fatalf("UnmarshalContent() error = %v", err)
		}
		got, ok := decoded.(*Show)
		if !ok {
			t.Fatalf("expected *Show, got %T", decoded)
		}
		if got.NumberOfSeasons != 8 || len(got.Seasons) != 1 || *got.Year != 2011 {
			t.Errorf("unexpected decoded show %+v", got)
		}
	})

	t.Run("UnmarshalContent rejects unknown type", func(t *testing.T) {
		if _, err := UnmarshalContent([]byte(`{"type":"podcast","id":"1"}`)); err == nil {
			t.Error("expected error for unknown type")
		}
	})

	t.Run("ParseContentType", func(t *testing.T) {
		for in, want := range map[string]ContentType{"movies": ContentMovie, "Show": ContentShow, "anime": ContentAnime} {
			got, err := ParseContentType(in)
			if err != nil || got != want {
				t.Errorf("ParseContentType(%q) = %v, %v", in, got, err)
			}
		}
		if _, err := ParseContentType("book"); err == nil {
			t.Error("expected error for book")
		}
	})
}

func TestWatchStatus(t *testing.T) {
	t.Run("labels", func(t *testing.T) {
		tc := map[WatchStatus]string{
			StatusNone:              "Set Status",
			StatusCurrentlyWatching: "Currently Watching",
			StatusWatchLater:        "Watch Later",
			StatusWatched:           "Watched",
			StatusRewatch:           "Rewatch",
		}
		for s, want := range tc {
			if got := s.Label(); got != want {
				t.Errorf("%s.Label() = %q, want %q", s, got, want)
			}
		}
	})

	t.Run("ParseWatchStatus", func(t *testing.T) {
		if s, err := ParseWatchStatus(""); err != nil || s != StatusNone {
			t.Errorf("empty should parse as none, got %v %v", s, err)
		}
		if s, err := ParseWatchStatus("watch-later"); err != nil || s != StatusWatchLater {
			t.Errorf("expected watch_later, got %v %v", s, err)
		}
		if _, err := ParseWatchStatus("dropped"); err == nil {
			t.Error("expected error for unknown status")
		}
	})

	t.Run("Tracked excludes none", func(t *testing.T) {
		if StatusNone.Tracked() {
			t.Error("none should not be tracked")
		}
		if len(Statuses()) != 4 || len(AllStatuses()) != 5 {
			t.Error("unexpected status sets")
		}
	})
}

func TestWatchProgress(t *testing.T) {
	show := &Show{
		Seasons: []Season{
			{SeasonNumber: 1, EpisodeCount: 10},
			{SeasonNumber: 2, EpisodeCount: 6},
		},
		NumberOfSeasons: 2,
	}

	t.Run("WithSeason resets episode", func(t *testing.T) {
		p := WatchProgress{Season: 1, Episode: 9}.WithSeason(2)
		if p != (WatchProgress{Season: 2, Episode: 1}) {
			t.Errorf("expected 2/1, got %+v", p)
		}

		same := WatchProgress{Season: 1, Episode: 9}.WithSeason(1)
		if same.Episode != 9 {
			t.Errorf("same season should keep episode, got %+v", same)
		}
	})

	t.Run("Clamp against known seasons", func(t *testing.T) {
		p := WatchProgress{Season: 2, Episode: 9}.Clamp(show)
		if p != (WatchProgress{Season: 2, Episode: 6}) {
			t.Errorf("expected 2/6, got %+v", p)
		}

		p = WatchProgress{Season: 5, Episode: 1}.Clamp(show)
		if p.Season != 2 {
			t.Errorf("expected season capped at 2, got %+v", p)
		}
	})

	t.Run("Clamp leaves unknown counts alone", func(t *testing.T) {
		p := WatchProgress{Season: 3, Episode: 40}.Clamp(&Show{})
		if p != (WatchProgress{Season: 3, Episode: 40}) {
			t.Errorf("expected unchanged progress, got %+v", p)
		}

		p = WatchProgress{Season: 0, Episode: 0}.Clamp(nil)
		if p != DefaultProgress() {
			t.Errorf("expected 1/1 floor, got %+v", p)
		}
	})

	t.Run("Clamp anime episodes", func(t *testing.T) {
		p := WatchProgress{Season: 1, Episode: 80}.Clamp(&Anime{Episodes: intPtr(64)})
		if p.Episode != 64 {
			t.Errorf("expected episode 64, got %d", p.Episode)
		}
	})
}

func TestContentByStatus(t *testing.T) {
	t.Run("prefilled with every status", func(t *testing.T) {
		agg := NewContentByStatus()
		for _, ct := range ContentTypes() {
			for _, s := range AllStatuses() {
				if agg.Items(ct, s) == nil {
					t.Errorf("expected non-nil list for %s/%s", ct, s)
				}
			}
		}
		if agg.Len() != 0 {
			t.Errorf("expected empty aggregate, got %d", agg.Len())
		}
	})

	t.Run("JSON uses plural keys and round trips", func(t *testing.T) {
		agg := NewContentByStatus()
		agg.Add(StatusWatched, &Movie{Base: Base{ID: "603", Title: "The Matrix", PosterURL: PlaceholderPoster}})
		agg.Add(StatusCurrentlyWatching, &Anime{Base: Base{ID: "5114", Title: "FMA"}, Episodes: intPtr(64)})

		data, err := json.Marshal(agg)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}

		var raw map[string]map[string][]map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(raw["movies"]["watched"]) != 1 {
			t.Errorf("expected movie under movies.watched, got %v", raw["movies"])
		}

		var decoded ContentByStatus
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if decoded.Len() != 2 {
			t.Errorf("expected 2 items, got %d", decoded.Len())
		}
		if s, ok := decoded.StatusOf(ContentAnime, "5114"); !ok || s != StatusCurrentlyWatching {
			t.Errorf("expected anime under currently_watching, got %v %v", s, ok)
		}
	})

	t.Run("rejects mismatched type", func(t *testing.T) {
		var agg ContentByStatus
		data := []byte(`{"movies":{"watched":[{"type":"show","id":"1"}]}}`)
		if err := json.Unmarshal(data, &agg); err == nil {
			t.Error("expected error for show filed under movies")
		}
	})
}

func TestRecords(t *testing.T) {
	t.Run("WatchStatusRecord validation", func(t *testing.T) {
		r := NewWatchStatusRecord("u1", ContentShow, "1399", StatusCurrentlyWatching)
		r.SetProgress(intPtr(2), intPtr(3))
		if err := r.Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}
		if r.Progress() != (WatchProgress{Season: 2, Episode: 3}) {
			t.Errorf("unexpected progress %+v", r.Progress())
		}

		none := NewWatchStatusRecord("u1", ContentShow, "1399", StatusNone)
		if err := none.Validate(); err == nil {
			t.Error("expected none to be rejected")
		}

		bad := NewWatchStatusRecord("u1", ContentShow, "1399", StatusWatched)
		bad.SetProgress(intPtr(0), nil)
		if err := bad.Validate(); err == nil {
			t.Error("expected season 0 to be rejected")
		}
	})

	t.Run("User validation", func(t *testing.T) {
		u := NewUser(1, "owais")
		if err := u.Validate(); err == nil {
			t.Error("expected missing id to fail")
		}
		u.SetID("id-1")
		if err := u.Validate(); err != nil {
			t.Errorf("expected valid user, got %v", err)
		}
	})
}
