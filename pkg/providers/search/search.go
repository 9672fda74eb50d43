// Package search adapts a plain HTTP JSON search backend to
// providers.SearchProvider. No dedicated search SDK exists anywhere in the
// reference pack (Exa/Tavily/SerpAPI are all absent), so this adapter talks
// net/http directly, grounded on the reference codebase's
// internal/tools/websearch/search.go backend-dispatch shape (build request,
// dispatch, classify non-200 status, decode JSON body) rather than on any
// third-party client library.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/ratelimit"
)

// Provider adapts a neural-search HTTP API (request/response shape
// compatible with Exa's /search endpoint, the only "search with extracted
// contents" shape present in the reference pack's domain vocabulary) to
// providers.SearchProvider.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New builds a Provider against baseURL (default "https://api.exa.ai" when
// empty) using apiKey for authentication.
func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = "https://api.exa.ai"
	}
	return &Provider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

type searchRequestBody struct {
	Query              string `json:"query"`
	Type               string `json:"type"`
	UseAutoprompt      bool   `json:"useAutoprompt"`
	NumResults         int    `json:"numResults"`
	StartPublishedDate string `json:"startPublishedDate,omitempty"`
	Contents           struct {
		Text bool `json:"text"`
	} `json:"contents"`
}

type searchResponseBody struct {
	AutopromptString string `json:"autopromptString"`
	Results          []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Text          string  `json:"text"`
		Author        string  `json:"author"`
		PublishedDate string  `json:"publishedDate"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

func (p *Provider) SearchWithContents(ctx context.Context, query string, opts providers.SearchOptions) (*providers.SearchResponse, error) {
	numResults := opts.NumResults
	if numResults <= 0 {
		numResults = 10
	}
	searchType := string(opts.Type)
	if searchType == "" {
		searchType = string(providers.SearchNeural)
	}

	reqBody := searchRequestBody{
		Query:              query,
		Type:               searchType,
		UseAutoprompt:      opts.UseAutoprompt,
		NumResults:         numResults,
		StartPublishedDate: opts.StartPublishedDate,
	}
	reqBody.Contents.Text = true

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ratelimit.RetryableError{Err: fmt.Errorf("search: request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("search: backend returned status %d: %s", resp.StatusCode, string(body))
		return nil, ratelimit.ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), baseErr)
	}

	var parsed searchResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	out := &providers.SearchResponse{Autoprompt: parsed.AutopromptString}
	for _, r := range parsed.Results {
		out.Results = append(out.Results, providers.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Text:          r.Text,
			Author:        r.Author,
			PublishedDate: r.PublishedDate,
			Score:         r.Score,
		})
	}
	return out, nil
}
