package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"reflect"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/reagent/pkg/llmutils"
	"github.com/effective-security/reagent/pkg/schema"
	"github.com/effective-security/reagent/tools"
)

const ToolName = "web_search"

// DefaultMaxResults bounds the search when no limit is configured.
const DefaultMaxResults = 10

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"Query" yaml:"Query" jsonschema:"title=Query,description=The query to search web."`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" jsonschema:"title=results,description=The results from a web search."`
	Answer  string                      `json:"answer,omitempty" jsonschema:"title=answer,description=The aggregated answer from a web search."`
}

func (i *SearchResult) GetContent() string {
	return llmutils.ToJSON(i)
}

// Tool is a tool that provides a web search functionality
type Tool struct {
	name        string
	description string
	funcParams  any

	maxResults     int
	includeDomains []string
	baseURL        string
	httpClient     *http.Client
}

// ensure the search tool implements the typed tool interface
var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

func New() (*Tool, error) {
	apikey := os.Getenv("TAVILY_API_KEY")
	if apikey == "" {
		return nil, errors.New("TAVILY_API_KEY is not set")
	}

	sc, err := schema.New(reflect.TypeOf(SearchRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	tool := &Tool{
		name:        ToolName,
		description: "Search for general web results using the Tavily search engine.",
		httpClient:  http.DefaultClient,
		maxResults:  DefaultMaxResults,
		funcParams:  sc.Parameters,
	}
	return tool, nil
}

// WithMaxResults bounds the number of search results per query.
func (t *Tool) WithMaxResults(maxResults int) *Tool {
	if maxResults > 0 {
		t.maxResults = maxResults
	}
	return t
}

// WithIncludeDomains narrows the search to the given domains.
func (t *Tool) WithIncludeDomains(domains ...string) *Tool {
	t.includeDomains = domains
	return t
}

func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() any {
	return t.funcParams
}

func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}

	apikey := os.Getenv("TAVILY_API_KEY")
	if apikey == "" {
		return nil, errors.New("TAVILY_API_KEY is not set")
	}

	client := tavilygo.NewClient(apikey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchReq := tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
		MaxResults:    t.maxResults,
	}
	if len(t.includeDomains) > 0 {
		searchReq.IncludeDomains = t.includeDomains
	}

	searchResp, err := tavilygo.Search(client, searchReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	res := &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}

	return res, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req SearchRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal input")
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	bs, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal output")
	}
	return string(bs), nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
