// Package main provides the grimoire binary — a recipe runner that resolves
// tool-backed variables, renders prompts, and hands them to an AI collaborator.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/chat"
	"github.com/ormasoftchile/grimoire/pkg/recipes"
	"github.com/ormasoftchile/grimoire/pkg/runtime"
	"github.com/ormasoftchile/grimoire/pkg/schema"
	"github.com/ormasoftchile/grimoire/pkg/toolkit"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "grimoire",
	Short: "Recipe runner for AI-assisted automation",
	Long:  "grimoire — runs YAML recipes that gather context with tools, render prompts, and hand them to an AI collaborator.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

var rootVerbose bool

// --- run ---

var (
	runSet     []string
	runDir     string
	runModel   string
	runDryRun  bool
	runRetries int
	runMCP     []string
)

var runCmd = &cobra.Command{
	Use:   "run <recipe> [arg1 arg2 ...]",
	Short: "Execute a recipe by name",
	Long: `Execute a recipe: resolve its variables with tools, render the prompts,
and send them to the AI collaborator. Positional arguments after the recipe
name are bound as arg1, arg2, ....

Examples:
  grimoire run summarize-file /tmp/report.txt
  grimoire run review --set style=strict --set focus=tests
  grimoire run triage --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	overrides, err := parseOverrides(runSet)
	if err != nil {
		return err
	}

	providers, closers, err := buildProviders(cmd, runMCP)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	e := &runtime.Executor{
		Store:     recipes.NewStore(recipesDir(cmd, runDir)),
		Providers: providers,
		DryRun:    runDryRun,
	}
	if !runDryRun {
		collaborator, err := chat.NewClaude(runModel)
		if err != nil {
			return err
		}
		e.Chat = collaborator
	}

	policy := runtime.DefaultPolicy()
	if runRetries > 0 {
		policy.MaxAttempts = runRetries
	}

	res, err := runtime.RunWithRetry(cmd.Context(), e, args[0], runtime.RunOptions{
		Overrides:    overrides,
		ExternalArgs: args[1:],
	}, policy, runtime.DefaultClassifier)
	if err != nil {
		return err
	}

	if runDryRun {
		fmt.Printf("run: %s (dry-run)\n\n", res.RunID)
		if res.SystemPrompt != "" {
			fmt.Printf("--- system ---\n%s\n\n", res.SystemPrompt)
		}
		fmt.Printf("--- user ---\n%s\n", res.UserPrompt)
		return nil
	}

	fmt.Println(res.Response)
	return nil
}

// recipesDir resolves the recipe directory: an explicit --recipes flag wins,
// then GRIMOIRE_RECIPES, then the default.
func recipesDir(cmd *cobra.Command, flagValue string) string {
	if cmd.Flags().Changed("recipes") {
		return flagValue
	}
	if env := os.Getenv("GRIMOIRE_RECIPES"); env != "" {
		return env
	}
	return flagValue
}

func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// buildProviders assembles the built-in providers plus any MCP bridges.
// Each --mcp value is a command line; its tools join the catalog under
// their advertised names.
func buildProviders(cmd *cobra.Command, mcpSpecs []string) ([]catalog.Provider, []interface{ Close() error }, error) {
	providers := []catalog.Provider{
		&toolkit.FS{},
		toolkit.NewShell(),
		&toolkit.Git{},
		toolkit.NewPrompt(),
	}

	var closers []interface{ Close() error }
	for _, spec := range mcpSpecs {
		fields := strings.Fields(spec)
		if len(fields) == 0 {
			return nil, nil, fmt.Errorf("invalid --mcp %q: empty command", spec)
		}
		bridge := &toolkit.MCP{Command: fields[0], Args: fields[1:], Timeout: 15 * time.Second}
		if err := bridge.Start(cmd.Context()); err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, fmt.Errorf("start MCP server %q: %w", fields[0], err)
		}
		providers = append(providers, bridge)
		closers = append(closers, bridge)
	}
	return providers, closers, nil
}

// --- list ---

var listDir string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := recipes.NewStore(recipesDir(cmd, listDir)).List()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no recipes found")
			return nil
		}
		for _, s := range summaries {
			if s.Description != "" {
				fmt.Printf("%-24s v%-3d %s\n", s.Name, s.Version, s.Description)
			} else {
				fmt.Printf("%-24s v%d\n", s.Name, s.Version)
			}
		}
		return nil
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <recipe.yaml>",
	Short: "Validate a recipe YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	rec, errs := schema.ValidateFile(args[0])
	var errors, warnings []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errors = append(errors, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errors))
	}
	fmt.Printf("✓ %s is valid (%d variables)\n", rec.Name, len(rec.Vars))
	return nil
}

// --- tools ---

var toolsMCP []string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		providers, closers, err := buildProviders(cmd, toolsMCP)
		if err != nil {
			return err
		}
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()

		cat := catalog.Build(providers, nil)
		for _, name := range cat.Keys() {
			tool, _ := cat.Lookup(name)
			params := make([]string, len(tool.Params))
			for i, p := range tool.Params {
				params[i] = fmt.Sprintf("%s:%s", p.Name, p.Type)
			}
			fmt.Printf("%-16s (%s)", name, strings.Join(params, ", "))
			if tool.Description != "" {
				fmt.Printf("  %s", tool.Description)
			}
			fmt.Println()
		}
		return nil
	},
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the recipe JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("grimoire %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")

	runCmd.Flags().StringArrayVar(&runSet, "set", nil, "Override a variable (key=value), repeatable")
	runCmd.Flags().StringVar(&runDir, "recipes", "recipes", "Directory containing recipe YAML files")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model to use (default "+chat.DefaultModel+")")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Resolve variables and print prompts without calling the model")
	runCmd.Flags().IntVar(&runRetries, "retries", 0, "Max attempts for transient failures (default 3)")
	runCmd.Flags().StringArrayVar(&runMCP, "mcp", nil, "Spawn an MCP server and add its tools (command line), repeatable")

	listCmd.Flags().StringVar(&listDir, "recipes", "recipes", "Directory containing recipe YAML files")

	toolsCmd.Flags().StringArrayVar(&toolsMCP, "mcp", nil, "Spawn an MCP server and add its tools (command line), repeatable")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
