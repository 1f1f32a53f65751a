// Package taskwarrior wraps the external `task` command line tool: it builds
// invocations, captures their output and decodes export JSON into task
// records. All task storage, IDs and filter syntax belong to taskwarrior
// itself; nothing here persists state.
package taskwarrior

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

const (
	// DefaultTaskBin is the taskwarrior binary probed on PATH.
	DefaultTaskBin = "task"
	// DefaultOpenBin is the annotation opener binary probed on PATH.
	DefaultOpenBin = "taskopen"

	// noConfirm suppresses taskwarrior's interactive confirmation prompts,
	// which would otherwise hang a non-interactive invocation.
	noConfirm = "rc.confirmation=off"
	// quietOutput strips headers and footers from export output.
	quietOutput = "rc.verbose=nothing"
)

// ErrToolMissing reports that the external binary could not be found.
var ErrToolMissing = errors.New("taskwarrior binary not found")

// CommandError carries the stderr text of a failed invocation so it can be
// surfaced on the launcher's notification surface.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("task %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("task %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Config holds Client settings.
type Config struct {
	TaskBin string
	OpenBin string
}

// Client invokes the taskwarrior command line tool.
type Client struct {
	taskBin string
	openBin string
	log     zerolog.Logger
}

// New creates a Client, falling back to the default binary names for any
// unset path.
func New(cfg Config, log zerolog.Logger) *Client {
	taskBin := cfg.TaskBin
	if taskBin == "" {
		taskBin = DefaultTaskBin
	}
	openBin := cfg.OpenBin
	if openBin == "" {
		openBin = DefaultOpenBin
	}
	return &Client{taskBin: taskBin, openBin: openBin, log: log}
}

// run executes bin with args, returning stdout. Non-zero exit becomes a
// CommandError carrying stderr; a missing binary becomes ErrToolMissing.
func (c *Client) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug().Str("bin", bin).Strs("args", args).Msg("invoking")

	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, bin)
		}
		return nil, &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// Available reports whether the task binary responds to --version.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.run(ctx, c.taskBin, "--version")
	return err == nil
}

// OpenAvailable reports whether the taskopen binary responds to --version.
func (c *Client) OpenAvailable(ctx context.Context) bool {
	_, err := c.run(ctx, c.openBin, "--version")
	return err == nil
}

// Version returns the task binary's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.taskBin, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Export runs `task <filter> export` and decodes the result. An empty filter
// exports everything the default context allows.
func (c *Client) Export(ctx context.Context, filter string) ([]Task, error) {
	args := strings.Fields(filter)
	args = append(args, quietOutput, "export")

	out, err := c.run(ctx, c.taskBin, args...)
	if err != nil {
		return nil, err
	}
	return ParseExport(out)
}

// Add creates a task from free text. The text is split into fields so
// taskwarrior parses project:, +tag and date tokens itself.
func (c *Client) Add(ctx context.Context, text string) error {
	args := append([]string{noConfirm, "add"}, strings.Fields(text)...)
	_, err := c.run(ctx, c.taskBin, args...)
	return err
}

// Annotate attaches a note to the task with the given uuid.
func (c *Client) Annotate(ctx context.Context, uuid, text string) error {
	_, err := c.run(ctx, c.taskBin, uuid, "annotate", text)
	return err
}

// Start marks the task active.
func (c *Client) Start(ctx context.Context, uuid string) error {
	_, err := c.run(ctx, c.taskBin, noConfirm, uuid, "start")
	return err
}

// Stop clears the task's active marker.
func (c *Client) Stop(ctx context.Context, uuid string) error {
	_, err := c.run(ctx, c.taskBin, noConfirm, uuid, "stop")
	return err
}

// Done completes the task.
func (c *Client) Done(ctx context.Context, uuid string) error {
	_, err := c.run(ctx, c.taskBin, noConfirm, uuid, "done")
	return err
}

// Delete removes the task.
func (c *Client) Delete(ctx context.Context, uuid string) error {
	_, err := c.run(ctx, c.taskBin, noConfirm, uuid, "delete")
	return err
}

// Open runs taskopen against the task's annotations.
func (c *Client) Open(ctx context.Context, uuid string) error {
	_, err := c.run(ctx, c.openBin, uuid)
	return err
}

// The *Command builders return single shell strings for the host to execute
// when the user activates an item. Free text that taskwarrior should parse
// token by token (add) stays unquoted; literal text (annotations) is escaped.

// AddCommand builds the host-side command for creating a task.
func (c *Client) AddCommand(text string) string {
	return fmt.Sprintf("%s %s add %s", shellescape.Quote(c.taskBin), noConfirm, text)
}

// AnnotateCommand builds the host-side command for annotating a task.
func (c *Client) AnnotateCommand(uuid, text string) string {
	return shellescape.QuoteCommand([]string{c.taskBin, uuid, "annotate", text})
}

// StartCommand builds the host-side command for starting a task.
func (c *Client) StartCommand(uuid string) string {
	return shellescape.QuoteCommand([]string{c.taskBin, noConfirm, uuid, "start"})
}

// StopCommand builds the host-side command for stopping a task.
func (c *Client) StopCommand(uuid string) string {
	return shellescape.QuoteCommand([]string{c.taskBin, noConfirm, uuid, "stop"})
}

// DoneCommand builds the host-side command for completing a task.
func (c *Client) DoneCommand(uuid string) string {
	return shellescape.QuoteCommand([]string{c.taskBin, noConfirm, uuid, "done"})
}

// DeleteCommand builds the host-side command for deleting a task.
func (c *Client) DeleteCommand(uuid string) string {
	return shellescape.QuoteCommand([]string{c.taskBin, noConfirm, uuid, "delete"})
}

// OpenCommand builds the host-side command for opening a task's annotations.
func (c *Client) OpenCommand(uuid string) string {
	return shellescape.QuoteCommand([]string{c.openBin, uuid})
}
