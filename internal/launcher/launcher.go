// Package launcher defines the data structures exchanged with the launcher
// host: keyword query events in, rendered result-item lists out. The host owns
// the event loop and all rendering; the plugin only describes items and the
// action the host should perform when one is activated.
package launcher

import "unicode/utf8"

// MaxTitleLen is the display width tasks are truncated to in result items.
const MaxTitleLen = 50

// ActionType identifies what the host should do when an item is activated.
type ActionType string

const (
	// ActionRun executes a shell command.
	ActionRun ActionType = "run"
	// ActionSetQuery replaces the launcher input with a new query.
	ActionSetQuery ActionType = "set-query"
	// ActionHide closes the launcher window without doing anything.
	ActionHide ActionType = "hide"
	// ActionOpen opens a path or URL with the desktop handler.
	ActionOpen ActionType = "open"
)

// Action describes the on-activate behavior of an item.
type Action struct {
	Type    ActionType `json:"type"`
	Command string     `json:"command,omitempty"`
	Query   string     `json:"query,omitempty"`
	Target  string     `json:"target,omitempty"`
}

// RunCommand returns an action that makes the host execute a shell command.
func RunCommand(command string) Action {
	return Action{Type: ActionRun, Command: command}
}

// SetQuery returns an action that replaces the launcher query text.
func SetQuery(query string) Action {
	return Action{Type: ActionSetQuery, Query: query}
}

// Hide returns an action that just closes the launcher window.
func Hide() Action {
	return Action{Type: ActionHide}
}

// OpenTarget returns an action that opens a path or URL.
func OpenTarget(target string) Action {
	return Action{Type: ActionOpen, Target: target}
}

// ItemMeta carries plugin-private metadata attached to an item. The host
// echoes it back unchanged in select events so the plugin can record what was
// activated without owning any state between queries.
type ItemMeta struct {
	Action      string `json:"action,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Description string `json:"description,omitempty"`
}

// Item is a single selectable row in the launcher result list.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	OnEnter     Action    `json:"on_enter"`
	Meta        *ItemMeta `json:"meta,omitempty"`
}

// ResponseType identifies the kind of response sent back to the host.
type ResponseType string

const (
	// ResponseRender carries a result-item list to display.
	ResponseRender ResponseType = "render"
	// ResponseAck confirms a select event was handled.
	ResponseAck ResponseType = "ack"
	// ResponseError reports a protocol-level failure.
	ResponseError ResponseType = "error"
)

// Response is the envelope the plugin writes back for every event.
type Response struct {
	Type  ResponseType `json:"type"`
	Items []Item       `json:"items,omitempty"`
	Error string       `json:"error,omitempty"`
}

// RenderList wraps items in a render response.
func RenderList(items ...Item) Response {
	return Response{Type: ResponseRender, Items: items}
}

// Ack returns an acknowledgement response.
func Ack() Response {
	return Response{Type: ResponseAck}
}

// ErrorResponse returns an error response with the given message.
func ErrorResponse(msg string) Response {
	return Response{Type: ResponseError, Error: msg}
}

// EventType identifies an incoming host event.
type EventType string

const (
	// EventQuery is a keyword query keystroke.
	EventQuery EventType = "query"
	// EventSelect reports that the user activated an item.
	EventSelect EventType = "select"
)

// Event is a single host-to-plugin message.
type Event struct {
	Type     EventType `json:"type"`
	Keyword  string    `json:"keyword,omitempty"`
	Argument string    `json:"argument,omitempty"`
	Item     *Item     `json:"item,omitempty"`
}

// Truncate shortens s to max runes, replacing the tail with "..." when the
// text does not fit.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
