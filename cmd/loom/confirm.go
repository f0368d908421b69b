package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/loom/internal/types"
)

// promptConfirmer asks on the terminal before continuing past safety warnings
type promptConfirmer struct {
	out io.Writer
	// assumeYes answers every prompt with yes (--yes)
	assumeYes bool
}

func newPromptConfirmer(out io.Writer) *promptConfirmer {
	return &promptConfirmer{out: out}
}

// Confirm prints the warnings and reads a y/N answer
func (p *promptConfirmer) Confirm(ctx context.Context, check *types.SafetyCheck) (bool, error) {
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, w := range check.Warnings {
		fmt.Fprintf(p.out, "%s %s\n", yellow("warning:"), w)
	}
	if p.assumeYes {
		return true, nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Continue? [y/N] ",
		InterruptPrompt: "^C",
		Stdout:          p.out,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return parseAnswer(line), nil
}

// parseAnswer accepts y and yes in any case; everything else is no
func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
