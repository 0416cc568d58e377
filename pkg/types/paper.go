// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research assistant:
// papers returned by the paper source, the per-thread conversation state
// persisted between calls, and configuration for every component.
package types

// UntitledPaper is the placeholder title for records the source returned
// without one.
const UntitledPaper = "Untitled"

// Paper is a bibliographic record retrieved for one search. Papers are
// immutable once the source has produced them.
type Paper struct {
	// ID is the source identifier (an OpenAlex work URL).
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// DOI is the bare DOI without the https://doi.org/ prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is never empty; see UntitledPaper.
	Title string `json:"title" yaml:"title"`

	// Authors lists display names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// PublishedDate is the publication date as supplied by the source,
	// normally YYYY-MM-DD. Empty when unknown.
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// Abstract is reconstructed from the source's inverted index and may be empty.
	Abstract string `json:"abstract" yaml:"abstract"`

	CitedByCount   int     `json:"cited_by_count" yaml:"cited_by_count"`
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// Titles returns the titles of papers in order.
func Titles(papers []Paper) []string {
	titles := make([]string, len(papers))
	for i, p := range papers {
		titles[i] = p.Title
	}
	return titles
}
