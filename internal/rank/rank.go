// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank orders retrieved papers by a user-chosen criterion and keeps
// the top few for gap analysis.
package rank

import (
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// TopN is the number of papers kept after ranking.
const TopN = 3

// dateLayouts are tried in order when parsing a published date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01",
	"2006",
}

// ParseCriterion maps user input to a criterion. Unknown or empty input
// selects citations.
func ParseCriterion(s string) types.RankingCriterion {
	switch c := types.RankingCriterion(strings.ToLower(strings.TrimSpace(s))); c {
	case types.CriterionCitations, types.CriterionRecency, types.CriterionRelevance:
		return c
	}
	return types.CriterionCitations
}

// Rank returns at most TopN papers sorted descending by criterion. The sort
// is stable and papers is left untouched.
func Rank(papers []types.Paper, criterion types.RankingCriterion) []types.Paper {
	sorted := slices.Clone(papers)
	if sorted == nil {
		sorted = []types.Paper{}
	}

	switch ParseCriterion(string(criterion)) {
	case types.CriterionRecency:
		slices.SortStableFunc(sorted, func(a, b types.Paper) int {
			return publishedAt(b).Compare(publishedAt(a))
		})
	case types.CriterionRelevance:
		slices.SortStableFunc(sorted, func(a, b types.Paper) int {
			return cmpDesc(a.RelevanceScore, b.RelevanceScore)
		})
	default:
		slices.SortStableFunc(sorted, func(a, b types.Paper) int {
			return cmpDesc(a.CitedByCount, b.CitedByCount)
		})
	}

	if len(sorted) > TopN {
		sorted = sorted[:TopN]
	}
	return sorted
}

func cmpDesc[T int | float64](a, b T) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

// publishedAt parses the paper's date. Missing or unparseable dates sort
// as the zero time, earlier than any real date.
func publishedAt(p types.Paper) time.Time {
	s := strings.TrimSpace(p.PublishedDate)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
