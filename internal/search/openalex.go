// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search retrieves candidate papers for a research query from the
// OpenAlex works API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Source searches a bibliographic API. The workflow depends on this
// interface so tests can supply canned papers.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.Paper, error)
}

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const (
	defaultMaxResults = 10
	maxPerPage        = 200
)

// OpenAlexSource queries the OpenAlex API.
type OpenAlexSource struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email      string
	UserAgent  string
	MaxRetries int

	limiter   *rate.Limiter
	sanitizer *bluemonday.Policy
}

// NewOpenAlexSource builds a source from cfg. A nil client gets one with
// cfg.Timeout.
func NewOpenAlexSource(client *http.Client, cfg types.SearchConfig) *OpenAlexSource {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &OpenAlexSource{
		Client:     client,
		Email:      cfg.Email,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(limit, 1),
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

// Name returns the source identifier.
func (s *OpenAlexSource) Name() string { return "openalex" }

// Search queries OpenAlex for works matching query and returns at most
// limit papers in the API's relevance order.
func (s *OpenAlexSource) Search(ctx context.Context, query string, limit int) ([]types.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}

	if limit <= 0 {
		limit = defaultMaxResults
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(limit)},
		"page":     {"1"},
	}
	if s.Email != "" {
		params.Set("mailto", s.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, s.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	papers := make([]types.Paper, 0, len(oar.Results))
	for _, work := range oar.Results {
		papers = append(papers, s.toPaper(work))
	}
	if len(papers) > limit {
		papers = papers[:limit]
	}
	return papers, nil
}

func (s *OpenAlexSource) toPaper(work openAlexWork) types.Paper {
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}
	title = s.clean(title)
	if title == "" {
		title = types.UntitledPaper
	}

	p := types.Paper{
		ID:             work.ID,
		DOI:            strings.TrimPrefix(work.DOI, "https://doi.org/"),
		Title:          title,
		Authors:        []string{},
		Abstract:       s.clean(reconstructAbstract(work.AbstractInvertedIndex)),
		CitedByCount:   max(work.CitedByCount, 0),
		RelevanceScore: max(work.RelevanceScore, 0),
	}

	for _, authorship := range work.Authorships {
		if name := strings.TrimSpace(authorship.Author.DisplayName); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	switch {
	case work.PublicationDate != "":
		p.PublishedDate = work.PublicationDate
	case work.PublicationYear > 0:
		p.PublishedDate = fmt.Sprintf("%04d-01-01", work.PublicationYear)
	}
	return p
}

// clean strips inline markup (OpenAlex titles carry <i>, <sub> and friends)
// and decodes entities.
func (s *OpenAlexSource) clean(text string) string {
	if text == "" {
		return ""
	}
	if s.sanitizer != nil {
		text = s.sanitizer.Sanitize(text)
	}
	return strings.TrimSpace(html.UnescapeString(text))
}

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?)\]])`)
	spaceAfterOpen   = regexp.MustCompile(`([(\[])\s+`)
)

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears. The result is best effort: word order is
// recovered but original spacing is not.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	// Map iteration order is random; break position ties by word so the
	// output is deterministic.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pos != pairs[j].pos {
			return pairs[i].pos < pairs[j].pos
		}
		return pairs[i].word < pairs[j].word
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	text := strings.Join(words, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return spaceAfterOpen.ReplaceAllString(text, "$1")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	RelevanceScore        float64              `json:"relevance_score"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
