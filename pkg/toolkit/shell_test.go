package toolkit

import (
	"context"
	"testing"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// fakeRunner records the invocation and returns canned output.
type fakeRunner struct {
	command string
	args    []string
	result  *CommandResult
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, command string, args []string) (*CommandResult, error) {
	f.command, f.args = command, args
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestShellRun(t *testing.T) {
	runner := &fakeRunner{result: &CommandResult{Stdout: []byte("out\n"), ExitCode: 0}}
	cat := catalog.Build([]catalog.Provider{&Shell{Runner: runner}}, nil)

	got, err := cat.Invoke(context.Background(), "run", dynamic.PositionalStrings([]string{"echo", "-n", "out"}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "out" {
		t.Errorf("output = %q, want trailing newline trimmed", got)
	}
	if runner.command != "echo" {
		t.Errorf("command = %q, want echo", runner.command)
	}
	if len(runner.args) != 2 || runner.args[0] != "-n" || runner.args[1] != "out" {
		t.Errorf("args = %v, want [-n out]", runner.args)
	}
}

func TestShellRunNonzeroExit(t *testing.T) {
	runner := &fakeRunner{result: &CommandResult{Stderr: []byte("boom\n"), ExitCode: 2}}
	cat := catalog.Build([]catalog.Provider{&Shell{Runner: runner}}, nil)

	_, err := cat.Invoke(context.Background(), "run", dynamic.PositionalStrings([]string{"false"}))
	if err == nil {
		t.Fatal("expected error for nonzero exit")
	}
}

func TestShellRunEmptyArgv(t *testing.T) {
	cat := catalog.Build([]catalog.Provider{&Shell{Runner: &fakeRunner{}}}, nil)
	if _, err := cat.Invoke(context.Background(), "run", dynamic.PositionalStrings(nil)); err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRealRunnerEcho(t *testing.T) {
	r := &RealRunner{}
	res, err := r.Run(context.Background(), "echo", []string{"hi"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Stdout) != "hi\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}
