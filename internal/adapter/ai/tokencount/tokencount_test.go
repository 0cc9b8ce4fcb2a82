package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	tests := []struct {
		name     string
		text     string
		model    string
		minCount int
		maxCount int
	}{
		{name: "simple text with gpt-4", text: "Hello, world!", model: "gpt-4", minCount: 3, maxCount: 5},
		{name: "longer text", text: "The quick brown fox jumps over the lazy dog.", model: "gpt-3.5-turbo", minCount: 8, maxCount: 12},
		{name: "openrouter model id", text: "Hello, world!", model: "meta-llama/llama-3.3-70b-instruct:free", minCount: 3, maxCount: 5},
		{name: "workers ai model id", text: "Hello, world!", model: "@cf/meta/llama-3.1-8b-instruct", minCount: 3, maxCount: 5},
		{name: "persian text", text: "حقوق مستأجر چیست؟", model: "gemini-2.5-flash", minCount: 3, maxCount: 40},
		{name: "empty", text: "", model: "gpt-4", minCount: 0, maxCount: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, err := counter.CountTokens(tt.text, tt.model)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, tt.minCount)
			assert.LessOrEqual(t, n, tt.maxCount)
		})
	}
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gpt-4", normalizeModelName("meta-llama/llama-3.3-70b-instruct:free"))
	assert.Equal(t, "gpt-3.5-turbo", normalizeModelName("openai/GPT-3.5-turbo"))
	assert.Equal(t, "gpt-4", normalizeModelName("gemini-2.5-flash"))
}

func TestEstimate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, Estimate("", "gpt-4"))
	assert.Greater(t, Estimate("Draft a lease termination notice", "gpt-4"), 0)

	c := NewCounter()
	first := c.Estimate("cache me", "x")
	second := c.Estimate("cache me", "y")
	assert.Equal(t, first, second)
	assert.Len(t, c.encodingCache, 1)
}
