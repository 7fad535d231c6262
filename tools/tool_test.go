package tools_test

import (
	"context"
	"testing"

	"github.com/effective-security/reagent/tools"
	"github.com/stretchr/testify/assert"
)

type namedTool struct {
	name string
	desc string
}

func (t namedTool) Name() string        { return t.name }
func (t namedTool) Description() string { return t.desc }
func (t namedTool) Parameters() any     { return nil }
func (t namedTool) Call(_ context.Context, _ string) (string, error) {
	return "", nil
}

func Test_DescribeLines(t *testing.T) {
	assert.Empty(t, tools.DescribeLines())

	got := tools.DescribeLines(
		namedTool{name: "web_search", desc: "Searches the web."},
		namedTool{name: "calculator", desc: "Evaluates arithmetic."},
	)
	exp := "- web_search: Searches the web.\n- calculator: Evaluates arithmetic."
	assert.Equal(t, exp, got)
}

func Test_Names(t *testing.T) {
	assert.Empty(t, tools.Names())
	assert.Equal(t,
		[]string{"web_search", "calculator"},
		tools.Names(namedTool{name: "web_search"}, namedTool{name: "calculator"}))
}

func Test_MapByName(t *testing.T) {
	first := namedTool{name: "Web_Search", desc: "first"}
	dup := namedTool{name: "web_search", desc: "second"}

	m := tools.MapByName(first, dup, namedTool{name: "calculator"})
	assert.Len(t, m, 2)
	assert.Equal(t, "first", m["web_search"].Description())
	assert.NotNil(t, m["calculator"])
	assert.Nil(t, m["missing"])
}
