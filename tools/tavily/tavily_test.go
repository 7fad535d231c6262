package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/reagent/pkg/llmutils"
	"github.com/effective-security/reagent/tools/tavily"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tool(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "testkey")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req tavilyModels.SearchRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)

		assert.Equal(t, "What is capital of France", req.Query)
		assert.Equal(t, 3, req.MaxResults)
		assert.Equal(t, []string{"example.com"}, req.IncludeDomains)

		resp := tavily.SearchResult{
			Results: []tavilyModels.SearchResult{
				{Title: "Test Result", URL: "https://example.com", Content: "Test content", Score: 0.9},
			},
		}
		if req.IncludeAnswer {
			resp.Answer = "Paris"
		}

		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ctx := context.Background()

	tool, err := tavily.New()
	require.NoError(t, err)
	tool.WithBaseURL(server.URL).
		WithHTTPClient(server.Client()).
		WithMaxResults(3).
		WithIncludeDomains("example.com")

	assert.Equal(t, tavily.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "Tavily")
	require.NotNil(t, tool.Parameters())

	_, err = tool.Call(ctx, "plain text input")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal input")

	input := &tavily.SearchRequest{
		Query: "What is capital of France",
	}

	resp, err := tool.Run(ctx, input)
	require.NoError(t, err)
	exp := `ANSWER: Paris
- URL: https://example.com
  TITLE: Test Result
  SCORE: 0.900000
  CONTENT: Test content
`
	assert.Equal(t, exp, resp.String())

	resp2, err := tool.Call(ctx, llmutils.ToJSON(input))
	require.NoError(t, err)
	exp = `{"results":[{"title":"Test Result","url":"https://example.com","content":"Test content","score":0.9}],"answer":"Paris"}`
	assert.Equal(t, exp, resp2)
}

func Test_New_MissingKey(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")

	_, err := tavily.New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TAVILY_API_KEY")
}

func Test_Run_EmptyQuery(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "testkey")

	tool, err := tavily.New()
	require.NoError(t, err)

	_, err = tool.Run(context.Background(), &tavily.SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty query")
}
