// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func titles(papers []types.Paper) []string {
	return types.Titles(papers)
}

func TestParseCriterion(t *testing.T) {
	tests := []struct {
		in   string
		want types.RankingCriterion
	}{
		{"citations", types.CriterionCitations},
		{"recency", types.CriterionRecency},
		{"relevance", types.CriterionRelevance},
		{"  Recency ", types.CriterionRecency},
		{"RELEVANCE", types.CriterionRelevance},
		{"", types.CriterionCitations},
		{"bogus", types.CriterionCitations},
		{"most cited", types.CriterionCitations},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCriterion(tt.in))
		})
	}
}

func TestRankByCriterion(t *testing.T) {
	papers := []types.Paper{
		{Title: "A", CitedByCount: 10, RelevanceScore: 0.2, PublishedDate: "2020-05-01"},
		{Title: "B", CitedByCount: 50, RelevanceScore: 0.9, PublishedDate: "2023-01-15"},
		{Title: "C", CitedByCount: 5, RelevanceScore: 0.5, PublishedDate: "2019-11-30"},
		{Title: "D", CitedByCount: 30, RelevanceScore: 0.1, PublishedDate: ""},
	}

	tests := []struct {
		criterion types.RankingCriterion
		want      []string
	}{
		{types.CriterionCitations, []string{"B", "D", "A"}},
		{types.CriterionRecency, []string{"B", "A", "C"}},
		{types.CriterionRelevance, []string{"B", "C", "A"}},
		{"bogus", []string{"B", "D", "A"}},
		{"", []string{"B", "D", "A"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.criterion), func(t *testing.T) {
			got := Rank(papers, tt.criterion)
			if diff := cmp.Diff(tt.want, titles(got)); diff != "" {
				t.Errorf("Rank(%q) mismatch (-want +got):\n%s", tt.criterion, diff)
			}
		})
	}
}

func TestRankRecencyYears(t *testing.T) {
	papers := []types.Paper{
		{Title: "2020", PublishedDate: "2020-01-01"},
		{Title: "2023", PublishedDate: "2023-01-01"},
		{Title: "2019", PublishedDate: "2019-01-01"},
	}
	assert.Equal(t, []string{"2023", "2020", "2019"}, titles(Rank(papers, types.CriterionRecency)))
}

func TestRankRecencyDateLayouts(t *testing.T) {
	papers := []types.Paper{
		{Title: "garbage", PublishedDate: "sometime last spring"},
		{Title: "year only", PublishedDate: "2018"},
		{Title: "rfc3339", PublishedDate: "2021-03-04T10:00:00Z"},
		{Title: "month", PublishedDate: "2019-07"},
		{Title: "missing"},
	}
	got := titles(Rank(papers, types.CriterionRecency))
	assert.Equal(t, []string{"rfc3339", "month", "year only"}, got)
}

func TestRankUndatedKeepInputOrder(t *testing.T) {
	papers := []types.Paper{
		{Title: "x", PublishedDate: "n/a"},
		{Title: "y"},
		{Title: "z", PublishedDate: "??"},
	}
	assert.Equal(t, []string{"x", "y", "z"}, titles(Rank(papers, types.CriterionRecency)))
}

func TestRankStableTies(t *testing.T) {
	papers := []types.Paper{
		{Title: "first", CitedByCount: 7},
		{Title: "second", CitedByCount: 9},
		{Title: "third", CitedByCount: 7},
		{Title: "fourth", CitedByCount: 7},
	}
	assert.Equal(t, []string{"second", "first", "third"}, titles(Rank(papers, types.CriterionCitations)))
}

func TestRankEmpty(t *testing.T) {
	for _, c := range []types.RankingCriterion{types.CriterionCitations, types.CriterionRecency, types.CriterionRelevance} {
		got := Rank(nil, c)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	papers := []types.Paper{
		{Title: "low", CitedByCount: 1},
		{Title: "high", CitedByCount: 100},
	}
	before := slices.Clone(papers)

	_ = Rank(papers, types.CriterionCitations)

	if diff := cmp.Diff(before, papers); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

// TestRankProperties checks the length bound, ordering, stability, and
// subset properties over random inputs.
func TestRankProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(8)
		papers := make([]types.Paper, n)
		for i := range papers {
			papers[i] = types.Paper{
				Title:        fmt.Sprintf("p%d", i),
				CitedByCount: rng.Intn(4),
			}
		}

		got := Rank(papers, types.CriterionCitations)
		assert.LessOrEqual(t, len(got), min(TopN, n))
		assert.Len(t, got, min(TopN, n))

		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1], got[i]
			if prev.CitedByCount < cur.CitedByCount {
				t.Fatalf("iteration %d: not descending at %d: %v", iter, i, titles(got))
			}
			if prev.CitedByCount == cur.CitedByCount && indexOf(papers, prev.Title) > indexOf(papers, cur.Title) {
				t.Fatalf("iteration %d: tie order not stable at %d: %v", iter, i, titles(got))
			}
		}
		for _, p := range got {
			assert.GreaterOrEqual(t, indexOf(papers, p.Title), 0, "ranked paper not in input")
		}

		assert.Equal(t, titles(got), titles(Rank(papers, "bogus")))
	}
}

func indexOf(papers []types.Paper, title string) int {
	return slices.IndexFunc(papers, func(p types.Paper) bool { return p.Title == title })
}
