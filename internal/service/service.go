// Package service drives the host-blocking service through the system
// service command.
package service

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// State is the desired service state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// verb maps the state to the control command action.
func (s State) verb() string {
	if s == Running {
		return "start"
	}
	return "stop"
}

// Controller is the narrow boundary to the external service manager. It
// is kept to a single method so the sweep can be tested against a fake
// without touching a real service.
type Controller interface {
	SetState(ctx context.Context, state State) error
}

// Command controls a service by invoking an external control command such
// as service(8). The command's exit status is the sole success signal; no
// output is parsed.
type Command struct {
	Service string
	Path    string
	Timeout time.Duration
}

// SetState runs "<Path> <Service> <verb>" under a bounded wait and reports
// failure for any non-zero exit, folding the command output into the
// error.
func (c *Command) SetState(ctx context.Context, state State) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	verb := state.verb()
	cmd := exec.CommandContext(ctx, c.Path, c.Service, verb)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s %s failed: %w (out=%s)",
			c.Path, c.Service, verb, err, strings.TrimSpace(string(out)))
	}
	log.Info("service state changed", "service", c.Service, "state", state)
	return nil
}
