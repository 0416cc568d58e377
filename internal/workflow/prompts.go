// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// decideInstruction biases the model toward searching for research
// questions and answering everything else directly.
const decideInstruction = `You are a research assistant that helps users explore academic literature.
When the user asks about a research topic, scientific papers, studies, or the state of a field, call the search_papers tool with a concise search query.
For greetings, small talk, or questions that need no literature, answer directly without calling any tool.`

// noGapsYet stands in for the gap analysis when none was produced this turn.
const noGapsYet = "No gaps identified yet."

var respondTmpl = template.Must(template.New("respond").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}).Parse(`You are a research assistant.
The user asked: {{.Query}}

Top-ranked papers with summaries:
{{- range $i, $p := .Papers}}

Paper {{inc $i}}:
Title: {{$p.Title}}
{{- if $p.Authors}}
Authors: {{join $p.Authors ", "}}
{{- end}}
{{- if $p.PublishedDate}}
Published: {{$p.PublishedDate}}
{{- end}}
Citations: {{$p.CitedByCount}}
Summary: {{if $p.Abstract}}{{$p.Abstract}}{{else}}(no abstract available){{end}}
{{- else}}
No papers were ranked for this question.
{{- end}}

Identified gaps in each paper:
{{.Gaps}}

Provide a helpful response to the user.
`))

// renderRespondPrompt builds the system prompt of the Respond step.
func renderRespondPrompt(state *types.ConversationState) (string, error) {
	gaps := state.Gaps
	if strings.TrimSpace(gaps) == "" {
		gaps = noGapsYet
	}
	var buf bytes.Buffer
	err := respondTmpl.Execute(&buf, struct {
		Query  string
		Papers []types.Paper
		Gaps   string
	}{Query: state.Query, Papers: state.RankedPapers, Gaps: gaps})
	if err != nil {
		return "", fmt.Errorf("rendering respond prompt: %w", err)
	}
	return buf.String(), nil
}

// newInterrupt builds the payload returned when a turn suspends after
// search.
func newInterrupt(papers []types.Paper) *types.InterruptPayload {
	titles := types.Titles(papers)
	return &types.InterruptPayload{
		PapersFound: strings.Join(titles, "\n"),
		Titles:      titles,
		Message:     fmt.Sprintf("Found %d papers. How would you like to rank them?", len(papers)),
		Options:     types.CriterionOptions(),
	}
}
