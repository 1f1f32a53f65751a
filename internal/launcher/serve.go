package launcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Handler processes decoded host events.
type Handler interface {
	HandleQuery(ctx context.Context, keyword, argument string) Response
	HandleSelect(ctx context.Context, ev Event) Response
}

// Server runs the long-lived host protocol: one JSON event per line on in,
// one JSON response per line on out. Stdout must stay protocol-clean, so all
// diagnostics go through the logger (stderr).
type Server struct {
	in  io.Reader
	out io.Writer
	h   Handler
	log zerolog.Logger
}

// NewServer creates a server reading events from in and writing responses to out.
func NewServer(in io.Reader, out io.Writer, h Handler, log zerolog.Logger) *Server {
	return &Server{in: in, out: out, h: h, log: log}
}

// Run processes events until in reaches EOF or ctx is cancelled. A malformed
// line yields an error response; it never terminates the loop.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(s.out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.log.Warn().Err(err).Msg("malformed event from host")
			if err := enc.Encode(ErrorResponse("malformed event: " + err.Error())); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			continue
		}

		resp := s.dispatch(ctx, ev)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, ev Event) Response {
	switch ev.Type {
	case EventQuery:
		return s.h.HandleQuery(ctx, ev.Keyword, ev.Argument)
	case EventSelect:
		return s.h.HandleSelect(ctx, ev)
	default:
		s.log.Warn().Str("type", string(ev.Type)).Msg("unknown event type")
		return ErrorResponse(fmt.Sprintf("unknown event type %q", ev.Type))
	}
}
