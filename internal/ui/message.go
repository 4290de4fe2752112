package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/watchx/internal/catalog"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/tracker"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPageLoaded MsgKind = iota
	MsgSearchDelivered
	MsgStatusesPrefetched
	MsgDetailsFetched
	MsgControllerEvent
	MsgControllerDone
	MsgDashboardLoaded
)

type pageLoaded struct {
	gen    uint64
	result catalog.Result
}

type searchDelivered struct {
	kind   models.ContentType
	result catalog.SearchResult
}

type statusesPrefetched struct {
	gen uint64
	err error
}

type detailsFetched struct {
	gen     uint64
	content models.Content
	err     error
}

type controllerEvent struct {
	key   tracker.Key
	event tracker.Event
}

type controllerDone struct {
	key tracker.Key
	err error
}

type dashboardLoaded struct {
	aggregate models.ContentByStatus
	err       error
}

// pageLoadedMsg is the constructor for [MsgPageLoaded]
func pageLoadedMsg(gen uint64, result catalog.Result) Msg {
	return Msg{kind: MsgPageLoaded, data: pageLoaded{gen, result}}
}

// searchDeliveredMsg is the constructor for [MsgSearchDelivered]
func searchDeliveredMsg(kind models.ContentType, result catalog.SearchResult) Msg {
	return Msg{kind: MsgSearchDelivered, data: searchDelivered{kind, result}}
}

// statusesPrefetchedMsg is the constructor for [MsgStatusesPrefetched]
func statusesPrefetchedMsg(gen uint64, err error) Msg {
	return Msg{kind: MsgStatusesPrefetched, data: statusesPrefetched{gen, err}}
}

// detailsFetchedMsg is the constructor for [MsgDetailsFetched]
func detailsFetchedMsg(gen uint64, content models.Content, err error) Msg {
	return Msg{kind: MsgDetailsFetched, data: detailsFetched{gen, content, err}}
}

// controllerEventMsg is the constructor for [MsgControllerEvent]
func controllerEventMsg(key tracker.Key, event tracker.Event) Msg {
	return Msg{kind: MsgControllerEvent, data: controllerEvent{key, event}}
}

// controllerDoneMsg is the constructor for [MsgControllerDone]
func controllerDoneMsg(key tracker.Key, err error) Msg {
	return Msg{kind: MsgControllerDone, data: controllerDone{key, err}}
}

// dashboardLoadedMsg is the constructor for [MsgDashboardLoaded]
func dashboardLoadedMsg(aggregate models.ContentByStatus, err error) Msg {
	return Msg{kind: MsgDashboardLoaded, data: dashboardLoaded{aggregate, err}}
}
