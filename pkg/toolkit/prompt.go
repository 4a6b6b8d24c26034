package toolkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// Asker collects a line of input from the operator.
type Asker interface {
	Ask(question string) (string, error)
}

// TerminalAsker prompts on the controlling terminal via readline.
type TerminalAsker struct{}

func (TerminalAsker) Ask(question string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          question + " ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Prompt exposes an "ask" tool that pauses the run and asks the operator
// a question. Useful for recipes that need a value no tool can compute.
type Prompt struct {
	Asker Asker
}

// NewPrompt returns a Prompt backed by the terminal.
func NewPrompt() *Prompt {
	return &Prompt{Asker: TerminalAsker{}}
}

func (p *Prompt) Tools() []catalog.Tool {
	return []catalog.Tool{
		{
			Name:        "ask",
			Description: "Ask the operator a question and return the typed answer",
			Params:      []catalog.Param{{Name: "question", Type: dynamic.TypeString}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				question, _ := args[0].(string)
				if question == "" {
					question = "input:"
				}
				return p.Asker.Ask(question)
			},
		},
	}
}
