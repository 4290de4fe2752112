package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/watchx/internal/catalog"
	"github.com/desertthunder/watchx/internal/formatter"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/desertthunder/watchx/internal/tracker"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	DetailView
	StatusMenuView
	DashboardView
)

// Options configures a [Model].
type Options struct {
	Kind        models.ContentType // initial content type, movies by default
	Timeout     time.Duration      // per-write timeout of status controllers
	SearchDelay time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	catalog *catalog.Client
	store   *tracker.Store
	opts    Options
	width   int
	height  int

	// browse
	kind          models.ContentType
	query         string
	page          int
	hasMore       bool
	loading       bool
	gen           uint64
	items         []models.Content
	browse        list.Model
	search        textinput.Model
	searcher      *catalog.Searcher
	searchResults chan Msg

	// detail
	selected   models.Content
	detailGen  uint64
	controller *tracker.Controller
	returnTo   ViewState
	menu       list.Model

	// dashboard
	dashboard models.ContentByStatus
	filter    textinput.Model
	dashList  list.Model

	notice    string
	noticeErr bool
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model browsing the catalog, with watch status served by store.
func NewModel(ctx context.Context, client *catalog.Client, store *tracker.Store, opts Options) *Model {
	if !opts.Kind.Valid() {
		opts.Kind = models.ContentMovie
	}
	if opts.Timeout <= 0 {
		opts.Timeout = tracker.DefaultTimeout
	}

	search := textinput.New()
	search.Placeholder = "Search..."
	search.Prompt = "/ "
	search.CharLimit = 100

	filter := textinput.New()
	filter.Placeholder = "Filter tracked titles..."
	filter.Prompt = "/ "
	filter.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	menuDelegate := list.NewDefaultDelegate()
	menuDelegate.ShowDescription = false
	menuDelegate.SetSpacing(0)

	m := &Model{
		ctx:           ctx,
		view:          BrowseView,
		catalog:       client,
		store:         store,
		opts:          opts,
		kind:          opts.Kind,
		browse:        newList("Popular", list.NewDefaultDelegate()),
		search:        search,
		searchResults: make(chan Msg, 1),
		menu:          newList("Set Status", menuDelegate),
		dashboard:     models.NewContentByStatus(),
		filter:        filter,
		dashList:      newList("Dashboard", list.NewDefaultDelegate()),
		spinner:       sp,
		help:          help.New(),
		keys:          newKeyMap(),
	}
	m.newSearcher()
	return m
}

func newList(title string, delegate list.ItemDelegate) list.Model {
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// Init loads the first page of the initial content type.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(m.spinner.Tick, m.loadPage(1), m.waitForSearch())
}

// Close stops background searches and the open status controller.
func (m *Model) Close() {
	if m.searcher != nil {
		m.searcher.Close()
	}
	m.closeController()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		switch m.view {
		case BrowseView:
			return m.handleBrowseKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case StatusMenuView:
			return m.handleMenuKeys(msg)
		case DashboardView:
			return m.handleDashboardKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	// cursor blink and other component messages
	var cmd tea.Cmd
	switch {
	case m.search.Focused():
		m.search, cmd = m.search.Update(msg)
	case m.filter.Focused():
		m.filter, cmd = m.filter.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPageLoaded:
		data := msg.data.(pageLoaded)
		if data.gen != m.gen {
			return m, nil
		}
		m.loading = false
		res := data.result
		if res.Err != nil {
			m.setNotice(fmt.Sprintf("Failed to load %s: %v", m.kind.Plural(), res.Err), true)
		}
		if res.Page <= 1 {
			m.items = nil
		}
		m.items = append(m.items, res.Items...)
		m.page, m.hasMore = res.Page, res.HasMore
		m.refreshBrowse()
		return m, m.prefetch(res.Items)

	case MsgSearchDelivered:
		data := msg.data.(searchDelivered)
		wait := m.waitForSearch()
		if data.kind != m.kind || data.result.Query != m.search.Value() {
			return m, wait
		}
		m.gen++
		m.query = data.result.Query
		_, cmd := m.handleMsg(pageLoadedMsg(m.gen, data.result.Result))
		return m, tea.Batch(wait, cmd)

	case MsgStatusesPrefetched:
		data := msg.data.(statusesPrefetched)
		if data.gen != m.gen {
			return m, nil
		}
		if data.err != nil {
			m.setNotice(fmt.Sprintf("Failed to load watch statuses: %v", data.err), true)
		}
		m.refreshBrowse()
		return m, nil

	case MsgDetailsFetched:
		data := msg.data.(detailsFetched)
		if data.gen != m.detailGen || m.selected == nil || m.controller != nil {
			return m, nil
		}
		if data.err != nil {
			m.setNotice(fmt.Sprintf("Failed to load details: %v", data.err), true)
		} else {
			m.selected = data.content
		}
		m.controller = tracker.ForContent(m.store, m.selected, m.opts.Timeout)
		c := m.controller
		return m, tea.Batch(m.waitForEvent(c), m.mutate(c.Load))

	case MsgControllerEvent:
		data := msg.data.(controllerEvent)
		if m.controller == nil || data.key != m.controller.Key() {
			return m, nil
		}
		switch ev := data.event; ev.Kind {
		case tracker.StatusSaved, tracker.ProgressSaved:
			m.setNotice(ev.Message, false)
		case tracker.LoadFailed, tracker.SaveFailed:
			m.setNotice(fmt.Sprintf("%s: %v", ev.Message, ev.Err), true)
		}
		return m, m.waitForEvent(m.controller)

	case MsgControllerDone:
		data := msg.data.(controllerDone)
		switch {
		case errors.Is(data.err, shared.ErrBusy):
			m.setNotice("Status is still loading", true)
		case errors.Is(data.err, shared.ErrInvalidArgument):
			m.setNotice(data.err.Error(), true)
		}
		m.refreshBrowse()
		return m, nil

	case MsgDashboardLoaded:
		data := msg.data.(dashboardLoaded)
		if data.err != nil {
			m.setNotice(fmt.Sprintf("Failed to load dashboard: %v", data.err), true)
			return m, nil
		}
		m.dashboard = data.aggregate
		m.refreshDashboard()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.search.Focused() {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.search.Blur()
			return m, nil
		}

		prev := m.search.Value()
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		if v := m.search.Value(); v != prev {
			m.loading = true
			m.searcher.Query(v)
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.search):
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.nextType):
		return m, m.switchType(nextType(m.kind))
	case key.Matches(msg, m.keys.more):
		if !m.hasMore || m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.loadPage(m.page + 1)
	case key.Matches(msg, m.keys.dashboard):
		return m, m.openDashboard()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.browse.SelectedItem().(contentItem); ok {
			return m, m.openDetail(item.content, BrowseView)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.browse, cmd = m.browse.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.closeController()
		m.detailGen++
		m.view = m.returnTo
		if m.view == DashboardView {
			return m, m.loadDashboard()
		}
		m.refreshBrowse()
		return m, nil
	case key.Matches(msg, m.keys.open):
		if url := m.selected.Info().WebURL; url != "" {
			if err := shared.OpenBrowser(url); err != nil {
				m.setNotice(err.Error(), true)
			}
		}
		return m, nil
	}

	c := m.controller
	if c == nil {
		return m, nil
	}

	if key.Matches(msg, m.keys.status) {
		m.menu.SetItems(statusMenuItems(c.Snapshot().Status))
		m.menu.Select(0)
		m.view = StatusMenuView
		return m, nil
	}

	if !c.ShowProgress() {
		return m, nil
	}
	p := c.Snapshot().Progress
	seasons, _ := progressBounds(m.selected, p.Season)

	switch {
	case key.Matches(msg, m.keys.prevSeason) && p.Season > 1:
		return m, m.mutate(func(ctx context.Context) error { return c.ChangeSeason(ctx, p.Season-1) })
	case key.Matches(msg, m.keys.nextSeason) && (seasons == 0 || p.Season < seasons):
		return m, m.mutate(func(ctx context.Context) error { return c.ChangeSeason(ctx, p.Season+1) })
	case key.Matches(msg, m.keys.prevEpisode) && p.Episode > 1:
		return m, m.mutate(func(ctx context.Context) error { return c.ChangeEpisode(ctx, p.Episode-1) })
	case key.Matches(msg, m.keys.nextEpisode):
		return m, m.mutate(func(ctx context.Context) error { return c.ChangeEpisode(ctx, p.Episode+1) })
	}
	return m, nil
}

func (m *Model) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.view = DetailView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = DetailView
		item, ok := m.menu.SelectedItem().(statusItem)
		if !ok || m.controller == nil {
			return m, nil
		}
		c, status := m.controller, item.status
		return m, m.mutate(func(ctx context.Context) error { return c.SetStatus(ctx, status) })
	}

	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filter.Focused() {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.filter.Blur()
			return m, nil
		}

		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refreshDashboard()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.view = BrowseView
		m.refreshBrowse()
		return m, nil
	case key.Matches(msg, m.keys.search):
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.dashList.SelectedItem().(contentItem); ok {
			return m, m.openDetail(item.content, DashboardView)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.dashList, cmd = m.dashList.Update(msg)
	return m, cmd
}

func (m *Model) quit() tea.Cmd {
	m.Close()
	return tea.Quit
}

func (m *Model) resize() {
	w, h := max(m.width-4, 20), max(m.height-10, 5)
	m.browse.SetSize(w, h)
	m.dashList.SetSize(w, h)
	m.menu.SetSize(w, 8)
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice, m.noticeErr = text, isErr
}

func nextType(t models.ContentType) models.ContentType {
	types := models.ContentTypes()
	for i, candidate := range types {
		if candidate == t {
			return types[(i+1)%len(types)]
		}
	}
	return types[0]
}

// switchType resets browsing to page 1 of t's popular feed.
func (m *Model) switchType(t models.ContentType) tea.Cmd {
	m.kind = t
	m.query = ""
	m.search.SetValue("")
	m.search.Blur()
	m.gen++
	m.page, m.hasMore = 0, false
	m.items = nil
	m.notice = ""
	m.refreshBrowse()
	m.newSearcher()

	m.loading = true
	return m.loadPage(1)
}

func (m *Model) newSearcher() {
	if m.searcher != nil {
		m.searcher.Close()
	}
	kind, results := m.kind, m.searchResults
	m.searcher = catalog.NewSearcher(m.ctx, m.catalog, kind, m.opts.SearchDelay, func(r catalog.SearchResult) {
		deliverLatest(results, searchDeliveredMsg(kind, r))
	})
}

// deliverLatest replaces any undelivered message in ch with msg.
func deliverLatest(ch chan Msg, msg Msg) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m *Model) waitForSearch() tea.Cmd {
	results := m.searchResults
	return func() tea.Msg {
		return <-results
	}
}

func (m *Model) loadPage(page int) tea.Cmd {
	gen, kind, query := m.gen, m.kind, m.query
	return func() tea.Msg {
		return pageLoadedMsg(gen, m.catalog.Search(m.ctx, kind, query, page))
	}
}

// prefetch batch-loads the statuses of items into the store so list rows can show them.
func (m *Model) prefetch(items []models.Content) tea.Cmd {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, c := range items {
		ids[i] = c.Info().ID
	}
	gen, kind := m.gen, m.kind
	return func() tea.Msg {
		_, err := m.store.Prefetch(m.ctx, kind, ids)
		return statusesPrefetchedMsg(gen, err)
	}
}

func (m *Model) openDetail(c models.Content, from ViewState) tea.Cmd {
	m.closeController()
	m.selected = c
	m.returnTo = from
	m.view = DetailView
	m.notice = ""
	m.detailGen++

	gen, kind, id := m.detailGen, c.Type(), c.Info().ID
	return func() tea.Msg {
		item, err := m.catalog.Details(m.ctx, kind, id)
		return detailsFetchedMsg(gen, item, err)
	}
}

func (m *Model) closeController() {
	if m.controller != nil {
		m.controller.Close()
		m.controller = nil
	}
}

// mutate runs fn against the open controller in the background.
func (m *Model) mutate(fn func(ctx context.Context) error) tea.Cmd {
	k := m.controller.Key()
	return func() tea.Msg {
		return controllerDoneMsg(k, fn(m.ctx))
	}
}

func (m *Model) waitForEvent(c *tracker.Controller) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-c.Events()
		if !ok {
			return nil
		}
		return controllerEventMsg(c.Key(), ev)
	}
}

func (m *Model) openDashboard() tea.Cmd {
	m.view = DashboardView
	m.notice = ""
	return m.loadDashboard()
}

func (m *Model) loadDashboard() tea.Cmd {
	return func() tea.Msg {
		agg, err := m.store.Dashboard(m.ctx)
		return dashboardLoadedMsg(agg, err)
	}
}

func (m *Model) refreshBrowse() {
	items := make([]list.Item, len(m.items))
	for i, c := range m.items {
		status, known := m.store.Cached(m.store.Key(c.Type(), c.Info().ID))
		items[i] = contentItem{content: c, status: status, known: known}
	}
	m.browse.Title = "Popular"
	if m.query != "" {
		m.browse.Title = fmt.Sprintf("Results for %q", m.query)
	}
	m.browse.SetItems(items)
}

func (m *Model) refreshDashboard() {
	filtered := formatter.Filter(m.dashboard, m.filter.Value())

	var items []list.Item
	for _, t := range models.ContentTypes() {
		for _, s := range models.Statuses() {
			for _, c := range filtered.Items(t, s) {
				items = append(items, contentItem{content: c, status: s, known: true, showType: true})
			}
		}
	}
	m.dashList.Title = fmt.Sprintf("Dashboard (%d tracked)", m.dashboard.Len())
	m.dashList.SetItems(items)
}

// progressBounds reports the known season count and the episode count of season, 0 when unknown.
func progressBounds(c models.Content, season int) (seasons, episodes int) {
	if c == nil {
		return 0, 0
	}
	bounds := models.Match(c,
		func(*models.Movie) [2]int { return [2]int{} },
		func(s *models.Show) [2]int {
			n, _ := s.EpisodeCount(season)
			return [2]int{s.SeasonCount(), n}
		},
		func(a *models.Anime) [2]int {
			if a.Episodes == nil {
				return [2]int{}
			}
			return [2]int{0, *a.Episodes}
		},
	)
	return bounds[0], bounds[1]
}
