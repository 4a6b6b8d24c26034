package toolkit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner abstracts command execution so recipes can be tested without
// spawning processes.
type Runner interface {
	Run(ctx context.Context, command string, args []string) (*CommandResult, error)
}

// RealRunner runs commands via os/exec.
type RealRunner struct {
	Env []string
}

func (r *RealRunner) Run(ctx context.Context, command string, args []string) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	if len(r.Env) > 0 {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

// Shell exposes a single "run" tool. The tool takes the full argv as one
// list parameter: the first element is the command, the rest its arguments.
type Shell struct {
	Runner Runner
}

// NewShell returns a Shell backed by a RealRunner.
func NewShell() *Shell {
	return &Shell{Runner: &RealRunner{}}
}

func (s *Shell) Tools() []catalog.Tool {
	return []catalog.Tool{
		{
			Name:        "run",
			Description: "Run a command; returns trimmed stdout, fails on nonzero exit",
			Params:      []catalog.Param{{Name: "argv", Type: dynamic.TypeList}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				argv := toStrings(args[0])
				if len(argv) == 0 {
					return nil, fmt.Errorf("run: empty argv")
				}

				res, err := s.Runner.Run(ctx, argv[0], argv[1:])
				if err != nil {
					return nil, err
				}
				log.Debug().Str("command", argv[0]).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("command finished")
				if res.ExitCode != 0 {
					return nil, fmt.Errorf("run: %s exited %d: %s", argv[0], res.ExitCode, strings.TrimSpace(string(res.Stderr)))
				}
				return strings.TrimRight(string(res.Stdout), "\n"), nil
			},
		},
	}
}

func toStrings(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			out = append(out, dynamic.Stringify(item))
		}
		return out
	default:
		return []string{dynamic.Stringify(v)}
	}
}
