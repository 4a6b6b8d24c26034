// Package runtime implements the recipe executor: it binds variables,
// resolves recipe-declared tool calls in order, assembles the final
// prompts, and hands them to the chat collaborator.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/chat"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
	"github.com/ormasoftchile/grimoire/pkg/recipes"
	"github.com/ormasoftchile/grimoire/pkg/schema"
	"github.com/ormasoftchile/grimoire/pkg/template"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxxxxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	return fmt.Sprintf("%s-%s", ts, uuid.NewString()[:8])
}

// RunOptions are the per-invocation parameters of a run. They are
// constructed per CLI call and never persisted.
type RunOptions struct {
	// Overrides are --set key=value pairs, applied after defaults and
	// before variable resolution.
	Overrides map[string]string
	// ExternalArgs are free positional CLI arguments, bound to arg1..argN.
	ExternalArgs []string
}

// RunResult is everything a run produced: the assembled prompts, the
// collaborator's response, and the final variable bindings.
type RunResult struct {
	RunID        string
	Recipe       string
	SystemPrompt string
	UserPrompt   string
	Response     string
	Vars         map[string]string
}

// Executor orchestrates recipe execution. It is single-threaded and
// synchronous: tool invocation, template rendering, and the chat hand-off
// happen sequentially on the calling goroutine. The only mutable state is
// the per-run variable bindings, never aliased outside one Run call.
type Executor struct {
	Store     recipes.Loader
	Providers []catalog.Provider
	Chat      chat.Collaborator
	// DryRun resolves variables and renders prompts but skips the chat
	// hand-off and post-actions.
	DryRun bool
}

// Run executes the named recipe. The sequence is fixed: load the
// definition, build the (possibly allow-list-restricted) catalog, seed
// bindings, resolve declared variables in document order, render the final
// prompts, hand off to the collaborator, and apply post-actions.
//
// A bad tool reference aborts before any variable resolves, so no partial
// variable state is ever observable. Run never retries internally; retry,
// if any, wraps the whole call (see RunWithRetry).
func (e *Executor) Run(ctx context.Context, name string, opts RunOptions) (*RunResult, error) {
	def, err := e.Store.Load(name)
	if err != nil {
		return nil, err
	}

	cat := catalog.Build(e.Providers, def.AllowedTools)
	if err := preflightTools(cat, def); err != nil {
		return nil, err
	}

	runID := GenerateRunID()
	logger := log.With().Str("run_id", runID).Str("recipe", def.Name).Logger()
	logger.Info().Int("version", def.Version).Int("vars", len(def.Vars)).Msg("run started")

	vars := seedBindings(def, opts)

	for _, decl := range def.Vars {
		if decl.Call.When != "" {
			ok, err := evalCondition(decl.Call.When, vars)
			if err != nil {
				return nil, fmt.Errorf("variable %q when: %w", decl.Name, err)
			}
			if !ok {
				logger.Debug().Str("var", decl.Name).Str("when", decl.Call.When).Msg("variable skipped")
				vars[decl.Name] = ""
				continue
			}
		}

		rendered := renderArgs(decl.Call.Args, vars)
		result, err := cat.Invoke(ctx, decl.Call.Tool, dynamic.PositionalStrings(rendered))
		if err != nil {
			return nil, fmt.Errorf("resolve variable %q: %w", decl.Name, err)
		}

		// The resolved output always wins on a name collision with a
		// prior binding.
		vars[decl.Name] = dynamic.Stringify(result)
		logger.Debug().Str("var", decl.Name).Str("tool", decl.Call.Tool).Msg("variable resolved")
	}

	res := &RunResult{
		RunID:        runID,
		Recipe:       def.Name,
		SystemPrompt: template.Render(def.System, vars),
		UserPrompt:   template.Render(def.UserTemplate, vars),
		Vars:         vars,
	}

	if e.DryRun {
		logger.Info().Msg("dry-run: skipping chat hand-off")
		return res, nil
	}

	response, err := e.Chat.Send(ctx, res.SystemPrompt, res.UserPrompt)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	res.Response = response
	vars["response"] = response

	if err := e.applyPostActions(ctx, cat, def, vars, logger); err != nil {
		return nil, err
	}

	logger.Info().Msg("run completed")
	return res, nil
}

// preflightTools verifies every tool the recipe references exists in the
// restricted catalog, so a bad reference fails before any side effects.
func preflightTools(cat *catalog.Catalog, def *schema.Recipe) error {
	check := func(name string) error {
		if _, ok := cat.Lookup(name); !ok {
			return &catalog.ToolNotFoundError{Name: name, Available: cat.Keys()}
		}
		return nil
	}
	for _, decl := range def.Vars {
		if err := check(decl.Call.Tool); err != nil {
			return err
		}
	}
	for _, pa := range def.PostActions {
		if err := check(pa.Tool); err != nil {
			return err
		}
	}
	return nil
}

// seedBindings builds the initial variable set: defaults first, then
// overrides, then external positional arguments as arg1..argN.
func seedBindings(def *schema.Recipe, opts RunOptions) map[string]string {
	vars := make(map[string]string, len(def.Defaults)+len(opts.Overrides)+len(opts.ExternalArgs))
	for k, v := range def.Defaults {
		vars[k] = v
	}
	for k, v := range opts.Overrides {
		vars[k] = v
	}
	for i, v := range opts.ExternalArgs {
		vars["arg"+strconv.Itoa(i+1)] = v
	}
	return vars
}

func renderArgs(args schema.ArgsSpec, vars map[string]string) []string {
	rendered := make([]string, len(args))
	for i, a := range args {
		rendered[i] = template.Render(a, vars)
	}
	return rendered
}

// applyPostActions runs each post-action through the same catalog, with
// the chat response bound under "response".
func (e *Executor) applyPostActions(ctx context.Context, cat *catalog.Catalog, def *schema.Recipe, vars map[string]string, logger zerolog.Logger) error {
	for i, pa := range def.PostActions {
		if pa.When != "" {
			ok, err := evalCondition(pa.When, vars)
			if err != nil {
				return fmt.Errorf("postActions[%d] when: %w", i, err)
			}
			if !ok {
				logger.Debug().Int("index", i).Str("tool", pa.Tool).Msg("post-action skipped")
				continue
			}
		}

		rendered := renderArgs(pa.Args, vars)
		if _, err := cat.Invoke(ctx, pa.Tool, dynamic.PositionalStrings(rendered)); err != nil {
			return fmt.Errorf("postActions[%d] (%s): %w", i, pa.Tool, err)
		}
		logger.Debug().Int("index", i).Str("tool", pa.Tool).Msg("post-action applied")
	}
	return nil
}

// parseBinding attempts to parse a binding value as a JSON array or object
// so condition expressions can inspect structured tool output. Anything
// else stays a string.
func parseBinding(v string) any {
	t := strings.TrimSpace(v)
	if len(t) > 1 && t[0] == '[' {
		var arr []any
		if err := json.Unmarshal([]byte(t), &arr); err == nil {
			return arr
		}
	}
	if len(t) > 1 && t[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal([]byte(t), &obj); err == nil {
			return obj
		}
	}
	return v
}

// evalCondition evaluates a when: expression against the current bindings
// using expr-lang. An empty condition is always true. Bindings that look
// like JSON arrays or objects are parsed so expressions like len(x) > 1
// work on structured tool output.
func evalCondition(cond string, vars map[string]string) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = parseBinding(v)
	}

	program, err := expr.Compile(cond, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", cond, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", cond, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T: %v)", cond, output, output)
	}
	return result, nil
}
