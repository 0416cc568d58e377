// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis asks the language model for research gaps and
// limitations in the top-ranked papers.
package analysis

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	// NoGapsText is returned when there are no ranked papers to analyze.
	NoGapsText = "No gaps identified: no papers were available for analysis."

	// AnalysisFailedText replaces the analysis when the model call fails.
	AnalysisFailedText = "An error occurred during gap analysis."
)

// gapPromptTmpl embeds each ranked paper and the user's query and asks for
// a numbered list per paper.
var gapPromptTmpl = template.Must(template.New("gaps").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}).Parse(`You are a research assistant.
Analyze the top {{len .Papers}} papers below and identify potential research gaps or limitations for each.
Be specific, constructive, and realistic using only the provided summaries. As you are provided only
summaries, provide simple enough answers.

Query: {{.Query}}

Papers and Summaries:
{{range $i, $p := .Papers}}
Paper {{inc $i}}:
Title: {{$p.Title}}
{{- if $p.Authors}}
Authors: {{join $p.Authors ", "}}
{{- end}}
Summary: {{if $p.Abstract}}{{$p.Abstract}}{{else}}(no abstract available){{end}}
{{end}}
Provide a clear, numbered list for each paper.
`))

// Completer is the subset of the language model client the analyzer uses.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer produces gap analyses.
type Analyzer struct {
	llm    Completer
	logger *zap.Logger
}

// New returns an analyzer. A nil logger discards logs.
func New(llm Completer, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze returns the model's gap analysis for ranked. It never fails:
// without papers it returns NoGapsText without calling the model, and a
// model error or blank answer yields AnalysisFailedText. The model's text
// is returned as is.
func (a *Analyzer) Analyze(ctx context.Context, ranked []types.Paper, query string) string {
	if len(ranked) == 0 {
		return NoGapsText
	}

	prompt, err := RenderPrompt(ranked, query)
	if err != nil {
		a.logger.Error("rendering gap analysis prompt", zap.Error(err))
		return AnalysisFailedText
	}

	text, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.logger.Error("gap analysis failed", zap.Error(err), zap.Int("papers", len(ranked)))
		return AnalysisFailedText
	}
	if strings.TrimSpace(text) == "" {
		a.logger.Error("gap analysis returned no text", zap.Int("papers", len(ranked)))
		return AnalysisFailedText
	}
	return text
}

// RenderPrompt executes the gap analysis template.
func RenderPrompt(ranked []types.Paper, query string) (string, error) {
	var buf bytes.Buffer
	err := gapPromptTmpl.Execute(&buf, struct {
		Query  string
		Papers []types.Paper
	}{Query: query, Papers: ranked})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
