// Package dispatch maps keyword queries to taskwarrior actions and renders
// the outcome as launcher result items. It owns no task state: every query is
// answered from a fresh (or briefly cached) `task export`, and every mutation
// is a command the host or the select handler runs against taskwarrior.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"twlaunch/internal/config"
	"twlaunch/internal/history"
	"twlaunch/internal/launcher"
	"twlaunch/internal/taskwarrior"
)

// Canonical action names. Keywords from the config resolve to these; the
// canonical names themselves are accepted too so the tui and one-shot modes
// work without keyword bindings.
const (
	ActionAdd      = "add"
	ActionList     = "list"
	ActionToggle   = "toggle"
	ActionDone     = "done"
	ActionAnnotate = "annotate"
	ActionDelete   = "delete"
	ActionOpen     = "open"
)

// boostWindow is how far back selection history counts toward ranking.
const boostWindow = 7 * 24 * time.Hour

// maxFilterSuggestions caps the recent-filter items shown before the task
// list when the list keyword has no argument.
const maxFilterSuggestions = 3

// TaskClient is the subset of the taskwarrior client the dispatcher uses.
type TaskClient interface {
	Available(ctx context.Context) bool
	OpenAvailable(ctx context.Context) bool
	Export(ctx context.Context, filter string) ([]taskwarrior.Task, error)

	AddCommand(text string) string
	AnnotateCommand(uuid, text string) string
	StartCommand(uuid string) string
	StopCommand(uuid string) string
	DoneCommand(uuid string) string
	DeleteCommand(uuid string) string
	OpenCommand(uuid string) string
}

// History is the subset of the history store the dispatcher uses.
type History interface {
	Record(ctx context.Context, e history.Entry) error
	RecentFilters(ctx context.Context, n int) ([]string, error)
	Boost(ctx context.Context, window time.Duration) (map[string]int, error)
}

// Cache is the subset of the export cache the dispatcher uses.
type Cache interface {
	Get(filter string) ([]taskwarrior.Task, bool)
	Set(filter string, tasks []taskwarrior.Task)
}

// Options carries the optional serve-mode collaborators.
type Options struct {
	Cache   Cache
	History History
}

// Dispatcher routes keyword queries to actions.
type Dispatcher struct {
	client TaskClient
	cfg    *config.Config
	cache  Cache
	hist   History
	log    zerolog.Logger

	// runShell executes a host-side command string during select handling.
	// Injectable for tests.
	runShell func(ctx context.Context, command string) error

	mu    sync.Mutex
	avail bool
}

// New creates a Dispatcher.
func New(client TaskClient, cfg *config.Config, opts Options, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		cfg:      cfg,
		cache:    opts.Cache,
		hist:     opts.History,
		log:      log,
		runShell: runShellCommand,
	}
}

// SplitQuery splits a free-text query into keyword and trailing argument.
func SplitQuery(q string) (keyword, argument string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ""
	}
	if i := strings.IndexAny(q, " \t"); i >= 0 {
		return q[:i], strings.TrimSpace(q[i+1:])
	}
	return q, ""
}

// resolve maps a keyword to its canonical action name, or "" when unbound.
func (d *Dispatcher) resolve(keyword string) string {
	kw := d.cfg.Keywords
	switch keyword {
	case kw.Add, ActionAdd:
		return ActionAdd
	case kw.List, ActionList:
		return ActionList
	case kw.Toggle, ActionToggle:
		return ActionToggle
	case kw.Done, ActionDone:
		return ActionDone
	case kw.Annotate, ActionAnnotate:
		return ActionAnnotate
	case kw.Delete, ActionDelete:
		return ActionDelete
	case kw.Open, ActionOpen:
		return ActionOpen
	default:
		return ""
	}
}

// HandleQuery renders the result list for one keyword query.
func (d *Dispatcher) HandleQuery(ctx context.Context, keyword, argument string) launcher.Response {
	action := d.resolve(keyword)
	if action == "" {
		return d.errorItems("Unknown keyword", fmt.Sprintf("%q is not bound to any action", keyword))
	}

	if !d.available(ctx) {
		return d.errorItems("Taskwarrior not found.", "Please ensure 'task' is installed and in your PATH.")
	}

	switch action {
	case ActionAdd:
		return d.handleAdd(argument)
	case ActionList:
		return d.handleList(ctx, argument)
	case ActionToggle:
		return d.handleToggle(ctx, argument)
	case ActionDone:
		return d.handleDone(ctx, argument)
	case ActionAnnotate:
		return d.handleAnnotate(ctx, argument)
	case ActionDelete:
		return d.handleDelete(ctx, argument)
	case ActionOpen:
		return d.handleOpen(ctx, argument)
	default:
		return d.errorItems("Unknown action", action)
	}
}

// HandleSelect records and performs an activated item's action. The host
// sends these in serve mode; run actions are executed here so the selection
// can be recorded even when the host delegates execution.
func (d *Dispatcher) HandleSelect(ctx context.Context, ev launcher.Event) launcher.Response {
	if ev.Item == nil {
		return launcher.ErrorResponse("select event without item")
	}

	if d.hist != nil && ev.Item.Meta != nil {
		e := history.Entry{
			Action:      ev.Item.Meta.Action,
			UUID:        ev.Item.Meta.UUID,
			Description: ev.Item.Meta.Description,
			Filter:      ev.Item.Meta.Filter,
		}
		if err := d.hist.Record(ctx, e); err != nil {
			d.log.Warn().Err(err).Msg("failed to record selection")
		}
	}

	switch ev.Item.OnEnter.Type {
	case launcher.ActionRun:
		if err := d.runShell(ctx, ev.Item.OnEnter.Command); err != nil {
			d.log.Error().Err(err).Str("command", ev.Item.OnEnter.Command).Msg("command failed")
			return launcher.ErrorResponse(err.Error())
		}
		d.invalidate()
		return launcher.Ack()
	case launcher.ActionSetQuery, launcher.ActionHide, launcher.ActionOpen, "":
		// The host performs these itself.
		return launcher.Ack()
	default:
		return launcher.ErrorResponse(fmt.Sprintf("unknown action type %q", ev.Item.OnEnter.Type))
	}
}

func (d *Dispatcher) handleAdd(argument string) launcher.Response {
	if argument == "" {
		return d.noticeItems("Please enter a description for the new task.", "")
	}

	return launcher.RenderList(launcher.Item{
		Title:       fmt.Sprintf("Add task: '%s'", launcher.Truncate(argument, launcher.MaxTitleLen)),
		Description: "Press Enter to add this task to Taskwarrior",
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.RunCommand(d.client.AddCommand(argument)),
		Meta:        &launcher.ItemMeta{Action: ActionAdd, Description: argument},
	})
}

func (d *Dispatcher) handleList(ctx context.Context, argument string) launcher.Response {
	if rest, ok := strings.CutPrefix(argument, "@"); ok {
		return d.taskMenu(ctx, strings.TrimSpace(rest))
	}

	filter := argument
	var items []launcher.Item

	if filter == "" {
		filter = d.cfg.DefaultFilter
		items = append(items, d.filterSuggestions(ctx)...)
	}

	tasks, err := d.export(ctx, filter)
	if err != nil {
		return d.invokeError(err)
	}
	if len(tasks) == 0 && len(items) == 0 {
		return d.noticeItems(fmt.Sprintf("No tasks found for filter: '%s'", filter), "")
	}

	taskwarrior.SortByUrgency(tasks)
	d.applyBoost(ctx, tasks)

	for _, t := range tasks {
		if len(items) >= d.cfg.MaxResults {
			break
		}
		items = append(items, d.taskItem(t, filter))
	}
	return launcher.RenderList(items...)
}

// taskItem renders one task row. Activating it switches the query to the
// task's action menu instead of mutating anything.
func (d *Dispatcher) taskItem(t taskwarrior.Task, filter string) launcher.Item {
	title := launcher.Truncate(t.Description, launcher.MaxTitleLen)
	if t.Active() {
		title = "▶ " + title
	}
	return launcher.Item{
		Title:       title,
		Description: t.Summary(),
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.SetQuery(fmt.Sprintf("%s @%s", d.cfg.Keywords.List, t.ShortUUID())),
		Meta: &launcher.ItemMeta{
			Action:      ActionList,
			UUID:        t.UUID,
			Filter:      filter,
			Description: t.Description,
		},
	}
}

// filterSuggestions renders recently used filters as query replacements.
func (d *Dispatcher) filterSuggestions(ctx context.Context) []launcher.Item {
	if d.hist == nil {
		return nil
	}
	filters, err := d.hist.RecentFilters(ctx, maxFilterSuggestions)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to load recent filters")
		return nil
	}

	var items []launcher.Item
	for _, f := range filters {
		if f == d.cfg.DefaultFilter {
			continue
		}
		items = append(items, launcher.Item{
			Title:       fmt.Sprintf("Filter: %s", f),
			Description: "Press Enter to list tasks matching this filter",
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.SetQuery(fmt.Sprintf("%s %s", d.cfg.Keywords.List, f)),
			Meta:        &launcher.ItemMeta{Action: ActionList, Filter: f},
		})
	}
	return items
}

// applyBoost promotes recently selected tasks, keeping urgency order within
// equal boost counts.
func (d *Dispatcher) applyBoost(ctx context.Context, tasks []taskwarrior.Task) {
	if d.hist == nil || len(tasks) < 2 {
		return
	}
	counts, err := d.hist.Boost(ctx, boostWindow)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to load selection counts")
		return
	}
	if len(counts) == 0 {
		return
	}

	// Stable partition: boosted tasks first, ordered by count.
	sort.SliceStable(tasks, func(i, j int) bool {
		return counts[tasks[i].UUID] > counts[tasks[j].UUID]
	})
}

// taskMenu renders the per-task action menu reached by activating a list row.
func (d *Dispatcher) taskMenu(ctx context.Context, prefix string) launcher.Response {
	if prefix == "" {
		return d.noticeItems("Select a task first", "Type a task uuid after '@'")
	}

	t, resp := d.lookupTask(ctx, prefix)
	if t == nil {
		return resp
	}

	short := t.ShortUUID()
	title := launcher.Truncate(t.Description, launcher.MaxTitleLen)

	var items []launcher.Item
	if t.Active() {
		items = append(items, launcher.Item{
			Title:       fmt.Sprintf("Stop '%s'", title),
			Description: "Task is active; press Enter to stop it",
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.RunCommand(d.client.StopCommand(t.UUID)),
			Meta:        &launcher.ItemMeta{Action: ActionToggle, UUID: t.UUID, Description: t.Description},
		})
	} else {
		items = append(items, launcher.Item{
			Title:       fmt.Sprintf("Start '%s'", title),
			Description: "Press Enter to start this task",
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.RunCommand(d.client.StartCommand(t.UUID)),
			Meta:        &launcher.ItemMeta{Action: ActionToggle, UUID: t.UUID, Description: t.Description},
		})
	}

	items = append(items,
		launcher.Item{
			Title:       fmt.Sprintf("Mark task %s... done", short),
			Description: title,
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.RunCommand(d.client.DoneCommand(t.UUID)),
			Meta:        &launcher.ItemMeta{Action: ActionDone, UUID: t.UUID, Description: t.Description},
		},
		launcher.Item{
			Title:       fmt.Sprintf("Annotate task %s...", short),
			Description: "Press Enter to type a note",
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.SetQuery(fmt.Sprintf("%s %s ", d.cfg.Keywords.Annotate, short)),
			Meta:        &launcher.ItemMeta{Action: ActionAnnotate, UUID: t.UUID, Description: t.Description},
		},
		launcher.Item{
			Title:       fmt.Sprintf("Delete task %s...", short),
			Description: title,
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.RunCommand(d.client.DeleteCommand(t.UUID)),
			Meta:        &launcher.ItemMeta{Action: ActionDelete, UUID: t.UUID, Description: t.Description},
		},
	)

	if d.client.OpenAvailable(ctx) {
		items = append(items, launcher.Item{
			Title:       fmt.Sprintf("Open annotations of %s...", short),
			Description: fmt.Sprintf("%d annotation(s)", len(t.Annotations)),
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.RunCommand(d.client.OpenCommand(t.UUID)),
			Meta:        &launcher.ItemMeta{Action: ActionOpen, UUID: t.UUID, Description: t.Description},
		})
	}

	return launcher.RenderList(items...)
}

func (d *Dispatcher) handleToggle(ctx context.Context, argument string) launcher.Response {
	uuidArg, _ := SplitQuery(argument)
	if uuidArg == "" {
		return d.noticeItems(fmt.Sprintf("Usage: %s <uuid>", d.cfg.Keywords.Toggle), "")
	}

	t, resp := d.lookupTask(ctx, uuidArg)
	if t == nil {
		return resp
	}

	title := launcher.Truncate(t.Description, launcher.MaxTitleLen)
	if t.Active() {
		return launcher.RenderList(launcher.Item{
			Title:       fmt.Sprintf("Stop '%s'", title),
			Description: "Task is active; press Enter to stop it",
			Icon:        d.cfg.Icon,
			OnEnter:     launcher.RunCommand(d.client.StopCommand(t.UUID)),
			Meta:        &launcher.ItemMeta{Action: ActionToggle, UUID: t.UUID, Description: t.Description},
		})
	}
	return launcher.RenderList(launcher.Item{
		Title:       fmt.Sprintf("Start '%s'", title),
		Description: "Press Enter to start this task",
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.RunCommand(d.client.StartCommand(t.UUID)),
		Meta:        &launcher.ItemMeta{Action: ActionToggle, UUID: t.UUID, Description: t.Description},
	})
}

func (d *Dispatcher) handleDone(ctx context.Context, argument string) launcher.Response {
	uuidArg, _ := SplitQuery(argument)
	if uuidArg == "" {
		return d.noticeItems(fmt.Sprintf("Usage: %s <uuid>", d.cfg.Keywords.Done), "")
	}

	t, resp := d.lookupTask(ctx, uuidArg)
	if t == nil {
		return resp
	}

	return launcher.RenderList(launcher.Item{
		Title:       fmt.Sprintf("Mark task %s... done", t.ShortUUID()),
		Description: launcher.Truncate(t.Description, launcher.MaxTitleLen),
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.RunCommand(d.client.DoneCommand(t.UUID)),
		Meta:        &launcher.ItemMeta{Action: ActionDone, UUID: t.UUID, Description: t.Description},
	})
}

func (d *Dispatcher) handleAnnotate(ctx context.Context, argument string) launcher.Response {
	uuidArg, note := SplitQuery(argument)
	if uuidArg == "" || note == "" {
		return d.noticeItems(fmt.Sprintf("Usage: %s <uuid> <annotation text>", d.cfg.Keywords.Annotate), "")
	}

	t, resp := d.lookupTask(ctx, uuidArg)
	if t == nil {
		return resp
	}

	return launcher.RenderList(launcher.Item{
		Title:       fmt.Sprintf("Add annotation to task %s...", t.ShortUUID()),
		Description: fmt.Sprintf("Note: '%s'", note),
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.RunCommand(d.client.AnnotateCommand(t.UUID, note)),
		Meta:        &launcher.ItemMeta{Action: ActionAnnotate, UUID: t.UUID, Description: t.Description},
	})
}

func (d *Dispatcher) handleDelete(ctx context.Context, argument string) launcher.Response {
	uuidArg, _ := SplitQuery(argument)
	if uuidArg == "" {
		return d.noticeItems(fmt.Sprintf("Usage: %s <uuid>", d.cfg.Keywords.Delete), "")
	}

	t, resp := d.lookupTask(ctx, uuidArg)
	if t == nil {
		return resp
	}

	return launcher.RenderList(launcher.Item{
		Title:       fmt.Sprintf("Delete task %s...", t.ShortUUID()),
		Description: launcher.Truncate(t.Description, launcher.MaxTitleLen),
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.RunCommand(d.client.DeleteCommand(t.UUID)),
		Meta:        &launcher.ItemMeta{Action: ActionDelete, UUID: t.UUID, Description: t.Description},
	})
}

func (d *Dispatcher) handleOpen(ctx context.Context, argument string) launcher.Response {
	uuidArg, _ := SplitQuery(argument)
	if uuidArg == "" {
		return d.noticeItems(fmt.Sprintf("Usage: %s <uuid>", d.cfg.Keywords.Open), "")
	}

	if !d.client.OpenAvailable(ctx) {
		return d.errorItems("taskopen not found.", "Please ensure 'taskopen' is installed and in your PATH.")
	}

	t, resp := d.lookupTask(ctx, uuidArg)
	if t == nil {
		return resp
	}

	return launcher.RenderList(launcher.Item{
		Title:       fmt.Sprintf("Open annotations of %s...", t.ShortUUID()),
		Description: launcher.Truncate(t.Description, launcher.MaxTitleLen),
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.RunCommand(d.client.OpenCommand(t.UUID)),
		Meta:        &launcher.ItemMeta{Action: ActionOpen, UUID: t.UUID, Description: t.Description},
	})
}

// lookupTask resolves a full or prefix uuid to a single task. On failure the
// returned task is nil and the response is ready to send.
func (d *Dispatcher) lookupTask(ctx context.Context, uuidArg string) (*taskwarrior.Task, launcher.Response) {
	// Taskwarrior accepts both full and partial uuids as filters, so the
	// argument is passed through as-is once it looks like one.
	if _, err := uuid.Parse(uuidArg); err != nil && !isUUIDPrefix(uuidArg) {
		return nil, d.noticeItems(fmt.Sprintf("'%s' is not a task uuid", uuidArg), "")
	}

	tasks, err := d.export(ctx, uuidArg)
	if err != nil {
		return nil, d.invokeError(err)
	}

	t, err := taskwarrior.FindByPrefix(tasks, uuidArg)
	if err != nil {
		return nil, d.noticeItems(fmt.Sprintf("No unique task for '%s'", uuidArg), err.Error())
	}
	return t, launcher.Response{}
}

// export fetches tasks for filter, consulting the cache when present.
func (d *Dispatcher) export(ctx context.Context, filter string) ([]taskwarrior.Task, error) {
	if d.cache != nil {
		if tasks, ok := d.cache.Get(filter); ok {
			return tasks, nil
		}
	}
	tasks, err := d.client.Export(ctx, filter)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache.Set(filter, tasks)
	}
	return tasks, nil
}

// invalidate drops cached exports after a mutation ran.
func (d *Dispatcher) invalidate() {
	type invalidator interface{ Invalidate() }
	if inv, ok := d.cache.(invalidator); ok && d.cache != nil {
		inv.Invalidate()
	}
}

// available probes the task binary. A positive result is cached for the
// lifetime of the process; a negative one is re-probed so installing the tool
// works without a restart.
func (d *Dispatcher) available(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.avail {
		return true
	}
	d.avail = d.client.Available(ctx)
	return d.avail
}

// invokeError renders an invoker failure as a single error item.
func (d *Dispatcher) invokeError(err error) launcher.Response {
	if errors.Is(err, taskwarrior.ErrToolMissing) {
		return d.errorItems("Taskwarrior not found.", "Please ensure 'task' is installed and in your PATH.")
	}
	d.log.Error().Err(err).Msg("taskwarrior invocation failed")
	return d.errorItems("Taskwarrior command failed", err.Error())
}

// errorItems renders an error as a single dismissable item.
func (d *Dispatcher) errorItems(title, description string) launcher.Response {
	d.log.Error().Str("title", title).Str("description", description).Msg("displaying error to user")
	return launcher.RenderList(launcher.Item{
		Title:       title,
		Description: description,
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.Hide(),
	})
}

// noticeItems renders a usage hint as a single dismissable item.
func (d *Dispatcher) noticeItems(title, description string) launcher.Response {
	return launcher.RenderList(launcher.Item{
		Title:       title,
		Description: description,
		Icon:        d.cfg.Icon,
		OnEnter:     launcher.Hide(),
	})
}

// isUUIDPrefix reports whether s could be the leading part of a uuid.
func isUUIDPrefix(s string) bool {
	if s == "" || len(s) > 36 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// runShellCommand executes a host-side command string through the shell, the
// same way the launcher host would.
func runShellCommand(ctx context.Context, command string) error {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %s", command, msg)
		}
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}
