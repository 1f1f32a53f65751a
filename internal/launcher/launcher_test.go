package launcher

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 50, "short"},
		{strings.Repeat("x", 50), 50, strings.Repeat("x", 50)},
		{strings.Repeat("x", 51), 50, strings.Repeat("x", 47) + "..."},
		{"héllo wörld éxtra", 10, "héllo w..."},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestItemJSONShape(t *testing.T) {
	item := Item{
		Title:       "Add task: 'buy milk'",
		Description: "Press Enter to add this task to Taskwarrior",
		Icon:        "images/icon.png",
		OnEnter:     RunCommand("task rc.confirmation=off add buy milk"),
		Meta:        &ItemMeta{Action: "add", Description: "buy milk"},
	}

	data, err := json.Marshal(RenderList(item))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["type"] != "render" {
		t.Errorf("type = %v", decoded["type"])
	}

	items, ok := decoded["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items missing: %v", decoded)
	}
	first := items[0].(map[string]any)
	enter := first["on_enter"].(map[string]any)
	if enter["type"] != "run" || enter["command"] == "" {
		t.Errorf("on_enter = %v", enter)
	}
	// Unset action fields stay off the wire.
	if _, present := enter["query"]; present {
		t.Errorf("empty query should be omitted: %v", enter)
	}
}

func TestActionConstructors(t *testing.T) {
	if a := SetQuery("tl +work"); a.Type != ActionSetQuery || a.Query != "tl +work" {
		t.Errorf("SetQuery = %+v", a)
	}
	if a := Hide(); a.Type != ActionHide {
		t.Errorf("Hide = %+v", a)
	}
	if a := OpenTarget("/tmp/notes.md"); a.Type != ActionOpen || a.Target != "/tmp/notes.md" {
		t.Errorf("OpenTarget = %+v", a)
	}
}

func TestEventDecode(t *testing.T) {
	line := `{"type":"select","item":{"title":"x","on_enter":{"type":"run","command":"task 1 done"},"meta":{"action":"done","uuid":"u1"}}}`

	var ev Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ev.Type != EventSelect || ev.Item == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Item.OnEnter.Command != "task 1 done" || ev.Item.Meta.UUID != "u1" {
		t.Errorf("item not decoded: %+v", ev.Item)
	}
}
