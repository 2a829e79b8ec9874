package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTools(t *testing.T) {
	t.Run("no flags yields nil", func(t *testing.T) {
		assert.Nil(t, SelectTools(ToolRequest{}))
	})

	t.Run("thinking alone yields nil", func(t *testing.T) {
		// Extended reasoning is a generation option, not a tool descriptor.
		assert.Nil(t, SelectTools(ToolRequest{Thinking: true}))
	})

	t.Run("each flag adds exactly one descriptor", func(t *testing.T) {
		ts := SelectTools(ToolRequest{Search: true})
		require.NotNil(t, ts)
		require.Equal(t, []Tool{{Name: ToolSearch}}, ts.Tools)

		ts = SelectTools(ToolRequest{Search: true, URLContext: true, CodeExecution: true})
		require.NotNil(t, ts)
		require.Equal(t, []Tool{
			{Name: ToolSearch},
			{Name: ToolURLContext},
			{Name: ToolCodeExecution},
		}, ts.Tools)
	})

	t.Run("referentially transparent", func(t *testing.T) {
		req := ToolRequest{Search: true, CodeExecution: true}
		assert.Equal(t, SelectTools(req), SelectTools(req))
	})
}
