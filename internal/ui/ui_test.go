package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/watchx/internal/catalog"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/services"
	th "github.com/desertthunder/watchx/internal/testing"
	"github.com/desertthunder/watchx/internal/tracker"
)

const testUser = "user-1"

func movie(id, title string) models.Content {
	return &models.Movie{Base: models.Base{ID: id, Title: title, PosterURL: "/" + id + ".jpg"}}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type fixture struct {
	model   *Model
	backend *th.MockBackend
	movies  *th.MockCatalog
}

func setup(t *testing.T) *fixture {
	t.Helper()
	movies := &th.MockCatalog{
		Kind: models.ContentMovie,
		Pages: []*models.Page{
			{Items: []models.Content{movie("550", "Fight Club"), movie("603", "The Matrix")}, Page: 1, TotalPages: 2, HasMore: true},
		},
		Items: map[string]models.Content{"550": movie("550", "Fight Club")},
	}
	client := catalog.NewClient(map[models.ContentType]services.Catalog{models.ContentMovie: movies}, nil, nil)
	backend := th.NewMockBackend(testUser)
	store := tracker.NewStore(backend, testUser, nil)

	m := NewModel(context.Background(), client, store, Options{})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return &fixture{model: m, backend: backend, movies: movies}
}

// load runs the first page load and the status prefetch it triggers.
func (f *fixture) load(t *testing.T) {
	t.Helper()
	_, cmd := f.model.Update(f.model.loadPage(1)())
	if cmd == nil {
		t.Fatal("expected a prefetch command")
	}
	f.model.Update(cmd())
}

func TestModel(t *testing.T) {
	t.Run("page load prefetches statuses", func(t *testing.T) {
		f := setup(t)
		f.backend.Seed(models.ContentMovie, "603", models.NewStatusEntry(models.StatusWatched, nil))
		f.load(t)

		items := f.model.browse.Items()
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		matrix := items[1].(contentItem)
		if !matrix.known || matrix.status != models.StatusWatched {
			t.Errorf("expected cached watched status, got %v (known=%v)", matrix.status, matrix.known)
		}
		if !strings.Contains(matrix.Description(), "Watched") {
			t.Errorf("expected status label in description, got %q", matrix.Description())
		}
		if club := items[0].(contentItem); club.status.Tracked() {
			t.Errorf("expected untracked item, got %v", club.status)
		}
		if _, _, batch := f.backend.Counts(); batch != 1 {
			t.Errorf("expected one batch request, got %d", batch)
		}
		if !f.model.hasMore || f.model.page != 1 {
			t.Errorf("expected page 1 with more, got page %d more=%v", f.model.page, f.model.hasMore)
		}
	})

	t.Run("stale page is dropped after switching type", func(t *testing.T) {
		f := setup(t)
		stale := f.model.loadPage(1)()

		f.model.Update(tea.KeyMsg{Type: tea.KeyTab})
		if f.model.kind != models.ContentShow {
			t.Fatalf("expected shows tab, got %s", f.model.kind)
		}

		_, cmd := f.model.Update(stale)
		if cmd != nil {
			t.Error("expected no prefetch for a stale page")
		}
		if n := len(f.model.browse.Items()); n != 0 {
			t.Errorf("expected empty list, got %d items", n)
		}
	})

	t.Run("status menu writes through the controller", func(t *testing.T) {
		f := setup(t)
		f.load(t)

		_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if f.model.view != DetailView {
			t.Fatalf("expected detail view, got %v", f.model.view)
		}
		f.model.Update(cmd())
		if f.model.controller == nil {
			t.Fatal("expected a status controller")
		}
		if err := f.model.controller.Load(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}

		f.model.Update(runes("s"))
		if f.model.view != StatusMenuView {
			t.Fatalf("expected status menu, got %v", f.model.view)
		}
		if n := len(f.model.menu.Items()); n != len(models.Statuses()) {
			t.Errorf("expected %d menu entries for untracked item, got %d", len(models.Statuses()), n)
		}

		_, cmd = f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatal("expected a write command")
		}
		f.model.Update(cmd())

		puts := f.backend.Puts()
		if len(puts) != 1 {
			t.Fatalf("expected one write, got %d", len(puts))
		}
		if puts[0].ContentID != "550" || puts[0].Entry.Status != models.StatusCurrentlyWatching {
			t.Errorf("unexpected write %+v", puts[0])
		}
		if got := f.model.controller.Snapshot().Status; got != models.StatusCurrentlyWatching {
			t.Errorf("expected currently watching, got %v", got)
		}
		if !strings.Contains(f.model.View(), "Currently Watching") {
			t.Error("expected detail view to show the new status")
		}
	})

	t.Run("esc from detail closes the controller", func(t *testing.T) {
		f := setup(t)
		f.load(t)

		_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		f.model.Update(cmd())
		f.model.Update(tea.KeyMsg{Type: tea.KeyEsc})

		if f.model.view != BrowseView {
			t.Errorf("expected browse view, got %v", f.model.view)
		}
		if f.model.controller != nil {
			t.Error("expected controller to be closed")
		}
	})

	t.Run("details arriving after leaving are ignored", func(t *testing.T) {
		f := setup(t)
		f.load(t)

		_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		late := cmd()
		f.model.Update(tea.KeyMsg{Type: tea.KeyEsc})
		f.model.Update(late)

		if f.model.controller != nil {
			t.Error("expected late details to be dropped")
		}
	})

	t.Run("dashboard filter", func(t *testing.T) {
		f := setup(t)
		f.model.Update(runes("d"))
		if f.model.view != DashboardView {
			t.Fatalf("expected dashboard view, got %v", f.model.view)
		}

		agg := models.NewContentByStatus()
		agg.Add(models.StatusWatched, movie("603", "The Matrix"))
		agg.Add(models.StatusWatchLater, movie("550", "Fight Club"))
		f.model.Update(dashboardLoadedMsg(agg, nil))

		if n := len(f.model.dashList.Items()); n != 2 {
			t.Fatalf("expected 2 dashboard rows, got %d", n)
		}

		f.model.Update(runes("/"))
		f.model.Update(runes("matrix"))

		items := f.model.dashList.Items()
		if len(items) != 1 {
			t.Fatalf("expected 1 filtered row, got %d", len(items))
		}
		if title := items[0].(contentItem).Title(); title != "The Matrix" {
			t.Errorf("expected The Matrix, got %s", title)
		}
	})

	t.Run("views render", func(t *testing.T) {
		f := setup(t)
		f.load(t)

		browse := f.model.View()
		if !strings.Contains(browse, "Fight Club") {
			t.Errorf("expected browse view to list titles, got %q", browse)
		}
		if !strings.Contains(browse, "Movies") {
			t.Error("expected content type tabs")
		}

		_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if detail := f.model.View(); !strings.Contains(detail, "Fight Club") {
			t.Errorf("expected detail title, got %q", detail)
		}
		f.model.Update(cmd())
		if detail := f.model.View(); !strings.Contains(detail, "Status:") {
			t.Errorf("expected status line, got %q", detail)
		}
	})
}

func TestProgressBounds(t *testing.T) {
	show := &models.Show{
		Base:            models.Base{ID: "1399"},
		Seasons:         []models.Season{{SeasonNumber: 1, EpisodeCount: 10}, {SeasonNumber: 2, EpisodeCount: 8}},
		NumberOfSeasons: 2,
	}
	if s, e := progressBounds(show, 2); s != 2 || e != 8 {
		t.Errorf("expected 2/8, got %d/%d", s, e)
	}
	if s, e := progressBounds(show, 5); s != 2 || e != 0 {
		t.Errorf("expected unknown episode count, got %d/%d", s, e)
	}

	episodes := 64
	if s, e := progressBounds(&models.Anime{Episodes: &episodes}, 1); s != 0 || e != 64 {
		t.Errorf("expected 0/64, got %d/%d", s, e)
	}
	if s, e := progressBounds(&models.Movie{}, 1); s != 0 || e != 0 {
		t.Errorf("expected no bounds for a movie, got %d/%d", s, e)
	}
}

func TestDeliverLatest(t *testing.T) {
	ch := make(chan Msg, 1)
	deliverLatest(ch, dashboardLoadedMsg(nil, nil))
	deliverLatest(ch, statusesPrefetchedMsg(7, nil))

	msg := <-ch
	if msg.kind != MsgStatusesPrefetched || msg.data.(statusesPrefetched).gen != 7 {
		t.Errorf("expected the newest message, got %+v", msg)
	}
}
