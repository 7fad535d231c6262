package router

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/mocks/mockllms"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticTool struct {
	name string
	desc string
}

func (t staticTool) Name() string        { return t.name }
func (t staticTool) Description() string { return t.desc }
func (t staticTool) Parameters() any     { return map[string]any{"type": "object"} }
func (t staticTool) Call(ctx context.Context, input string) (string, error) {
	return "", nil
}

func Test_matchTools_ValidatesAgainstCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := []tools.ITool{
		staticTool{name: "web_search", desc: "Searches the web."},
		staticTool{name: "calculator", desc: "Evaluates expressions."},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	// the model hallucinates a name and repeats a valid one
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{Choices: []*llms.ContentChoice{
			{Content: `{"match_tools": ["web_search", "time_machine", "web_search"]}`},
		}}, nil)

	res := matchTools(context.Background(), mockLLM, "search for news", catalog)
	require.NoError(t, res.Err)
	assert.False(t, res.FailedOpen)
	assert.Equal(t, []string{"web_search"}, res.Tools)
}

func Test_matchTools_EmptyCatalogSkipsModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no GenerateContent expectation: calling the model fails the test
	mockLLM := mockllms.NewMockModel(ctrl)

	res := matchTools(context.Background(), mockLLM, "anything", nil)
	assert.Empty(t, res.Tools)
	assert.False(t, res.FailedOpen)
}

func Test_matchTools_NoUserTextSkipsModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLLM := mockllms.NewMockModel(ctrl)
	catalog := []tools.ITool{staticTool{name: "web_search", desc: "Searches the web."}}

	res := matchTools(context.Background(), mockLLM, "", catalog)
	assert.Empty(t, res.Tools)
	assert.False(t, res.FailedOpen)
}

func Test_matchTools_FailsOpenOnModelError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := []tools.ITool{
		staticTool{name: "web_search", desc: "Searches the web."},
		staticTool{name: "calculator", desc: "Evaluates expressions."},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("timeout"))

	res := matchTools(context.Background(), mockLLM, "search for news", catalog)
	require.Error(t, res.Err)
	assert.True(t, res.FailedOpen)
	assert.Equal(t, []string{"web_search", "calculator"}, res.Tools)
}

func Test_matchTools_FailsOpenOnEmptyOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	catalog := []tools.ITool{staticTool{name: "web_search", desc: "Searches the web."}}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{Choices: []*llms.ContentChoice{
			{Content: ""},
		}}, nil)

	res := matchTools(context.Background(), mockLLM, "search", catalog)
	require.Error(t, res.Err)
	assert.True(t, res.FailedOpen)
	assert.Equal(t, []string{"web_search"}, res.Tools)
}

func Test_boundTools(t *testing.T) {
	catalog := []tools.ITool{
		staticTool{name: "a", desc: "A"},
		staticTool{name: "b", desc: "B"},
		staticTool{name: "c", desc: "C"},
	}

	bound := boundTools(catalog, []string{"b"})
	require.Len(t, bound, 1)
	assert.Equal(t, "b", bound[0].Name())

	// no match exposes the full catalog
	assert.Len(t, boundTools(catalog, nil), 3)
}
