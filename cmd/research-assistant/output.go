// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Terminal styles for human-readable output.
var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7A80"))
	styleReply  = lipgloss.NewStyle().PaddingLeft(2)
	stylePrompt = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

// printTurn renders a turn result: the interrupt prompt when the thread is
// suspended, the reply otherwise.
func printTurn(w io.Writer, res *types.TurnResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	if res.Interrupted && res.Interrupt != nil {
		printInterrupt(w, res.Interrupt)
		fmt.Fprintf(w, "\n%s\n", styleMuted.Render(fmt.Sprintf(
			"Continue with: research-assistant resume --thread %s --criterion <%s>",
			res.ThreadID, strings.Join(res.Interrupt.Options, "|"))))
		return nil
	}
	fmt.Fprintln(w, styleReply.Render(res.Reply))
	return nil
}

func printInterrupt(w io.Writer, in *types.InterruptPayload) {
	fmt.Fprintln(w, styleTitle.Render(in.Message))
	for i, title := range in.Titles {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, title)
	}
}

// printPapers lists ranked papers with their ranking metrics.
func printPapers(w io.Writer, papers []types.Paper) {
	for i, p := range papers {
		fmt.Fprintf(w, "  %d. %s\n", i+1, p.Title)
		meta := []string{fmt.Sprintf("%d citations", p.CitedByCount)}
		if p.PublishedDate != "" {
			meta = append(meta, p.PublishedDate)
		}
		if p.DOI != "" {
			meta = append(meta, "doi:"+p.DOI)
		}
		fmt.Fprintf(w, "     %s\n", styleMuted.Render(strings.Join(meta, " | ")))
	}
}
