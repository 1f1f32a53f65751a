package launcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubHandler struct {
	queries []string
	selects int
}

func (h *stubHandler) HandleQuery(_ context.Context, keyword, argument string) Response {
	h.queries = append(h.queries, keyword+"|"+argument)
	return RenderList(Item{Title: "item for " + keyword, OnEnter: Hide()})
}

func (h *stubHandler) HandleSelect(_ context.Context, ev Event) Response {
	h.selects++
	return Ack()
}

func runServer(t *testing.T, input string) (*stubHandler, []Response) {
	t.Helper()

	h := &stubHandler{}
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, h, zerolog.Nop())

	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var responses []Response
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response line %q: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return h, responses
}

func TestServerQueryAndSelect(t *testing.T) {
	input := `{"type":"query","keyword":"tl","argument":"+work"}
{"type":"select","item":{"title":"x","on_enter":{"type":"hide"}}}
`
	h, responses := runServer(t, input)

	if len(h.queries) != 1 || h.queries[0] != "tl|+work" {
		t.Errorf("queries = %v", h.queries)
	}
	if h.selects != 1 {
		t.Errorf("selects = %d", h.selects)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Type != ResponseRender || len(responses[0].Items) != 1 {
		t.Errorf("first response = %+v", responses[0])
	}
	if responses[1].Type != ResponseAck {
		t.Errorf("second response = %+v", responses[1])
	}
}

func TestServerMalformedLineKeepsGoing(t *testing.T) {
	input := `this is not json
{"type":"query","keyword":"tl"}
`
	h, responses := runServer(t, input)

	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Type != ResponseError {
		t.Errorf("first response should be an error: %+v", responses[0])
	}
	if len(h.queries) != 1 {
		t.Errorf("valid query after bad line was not handled: %v", h.queries)
	}
}

func TestServerUnknownEventType(t *testing.T) {
	_, responses := runServer(t, `{"type":"shutdown"}`+"\n")

	if len(responses) != 1 || responses[0].Type != ResponseError {
		t.Fatalf("expected single error response, got %+v", responses)
	}
}

func TestServerSkipsBlankLines(t *testing.T) {
	h, responses := runServer(t, "\n\n"+`{"type":"query","keyword":"t","argument":"buy milk"}`+"\n")

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if len(h.queries) != 1 || h.queries[0] != "t|buy milk" {
		t.Errorf("queries = %v", h.queries)
	}
}
