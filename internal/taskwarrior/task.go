package taskwarrior

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// timestampLayout is the compact UTC format taskwarrior uses in export output.
const timestampLayout = "20060102T150405Z"

// Timestamp wraps time.Time with taskwarrior's export encoding.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses a taskwarrior timestamp string.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	ts.Time = t
	return nil
}

// MarshalJSON encodes the timestamp back into taskwarrior's format.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.UTC().Format(timestampLayout))
}

// Annotation is a timestamped note attached to a task.
type Annotation struct {
	Entry       *Timestamp `json:"entry,omitempty"`
	Description string     `json:"description"`
}

// Task is a single record from `task export`.
type Task struct {
	ID          int          `json:"id"`
	UUID        string       `json:"uuid"`
	Description string       `json:"description"`
	Project     string       `json:"project,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Status      string       `json:"status,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Urgency     float64      `json:"urgency"`
	Due         *Timestamp   `json:"due,omitempty"`
	Entry       *Timestamp   `json:"entry,omitempty"`
	Modified    *Timestamp   `json:"modified,omitempty"`
	Start       *Timestamp   `json:"start,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Active reports whether the task has a running start timestamp.
func (t *Task) Active() bool {
	return t.Start != nil
}

// ShortUUID returns the 8-character UUID prefix used in display text.
func (t *Task) ShortUUID() string {
	if len(t.UUID) < 8 {
		return t.UUID
	}
	return t.UUID[:8]
}

// Summary returns a short secondary line for result items: project, tags and
// urgency, whichever are present.
func (t *Task) Summary() string {
	var parts []string
	if t.Project != "" {
		parts = append(parts, t.Project)
	}
	for _, tag := range t.Tags {
		parts = append(parts, "+"+tag)
	}
	parts = append(parts, fmt.Sprintf("urgency %.1f", t.Urgency))
	return strings.Join(parts, " · ")
}

// ParseExport decodes a `task export` JSON array. Entries that fail to decode
// or lack a UUID and description are skipped rather than failing the whole
// export, matching how partial exports are tolerated elsewhere.
func ParseExport(data []byte) ([]Task, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("invalid export output: %w", err)
	}

	tasks := make([]Task, 0, len(raw))
	for _, msg := range raw {
		var t Task
		if err := json.Unmarshal(msg, &t); err != nil {
			continue
		}
		if t.UUID == "" || t.Description == "" {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// SortByUrgency orders tasks most-urgent first, breaking ties by ID so the
// ordering is stable across invocations.
func SortByUrgency(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Urgency != tasks[j].Urgency {
			return tasks[i].Urgency > tasks[j].Urgency
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// FindByPrefix returns the single task whose UUID starts with prefix, or an
// error when the prefix is ambiguous or matches nothing.
func FindByPrefix(tasks []Task, prefix string) (*Task, error) {
	var found *Task
	for i := range tasks {
		if strings.HasPrefix(tasks[i].UUID, prefix) {
			if found != nil {
				return nil, fmt.Errorf("uuid prefix %q is ambiguous", prefix)
			}
			found = &tasks[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no task matches uuid prefix %q", prefix)
	}
	return found, nil
}
