// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has four views:
//  1. [BrowseView] : Popular listings per content type, paged with n and searched with /
//  2. [DetailView] : One item with its watch status and, while currently watching a show or anime, progress pickers
//  3. [StatusMenuView] : The status menu, with "Clear Status" for tracked items
//  4. [DashboardView] : Every tracked item grouped by type and status, fuzzy filtered with /
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
//
// Search input goes through a [catalog.Searcher], so only the newest query's results are shown.
// Each page's statuses are loaded with one batch request into the shared [tracker.Store]; the detail
// view drives a [tracker.Controller] whose events arrive as messages. Writes show optimistically
// while a spinner runs and roll back with an error notice when the backend rejects them.
package ui
