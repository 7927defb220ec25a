package themes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essay-grader/internal/llm"
)

type fakeGen struct {
	calls int
	fn    func(call int) (string, error)
}

func (g *fakeGen) GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	g.calls++
	return g.fn(g.calls)
}

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{Wait: time.Millisecond}
}

func TestSuggest(t *testing.T) {
	gen := &fakeGen{fn: func(int) (string, error) {
		return `{"theme":"The challenge of urban mobility in Brazil","motivating_texts":["t1","t2","t3"]}`, nil
	}}
	sug, err := NewSuggester(gen, fastRetry()).Suggest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "The challenge of urban mobility in Brazil", sug.Theme)
	assert.Len(t, sug.MotivatingTexts, 3)
}

func TestSuggestStripsFences(t *testing.T) {
	gen := &fakeGen{fn: func(int) (string, error) {
		return "```json\n{\"theme\":\"A theme\",\"motivating_texts\":[\"t1\"]}\n```", nil
	}}
	sug, err := NewSuggester(gen, fastRetry()).Suggest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A theme", sug.Theme)
}

func TestSuggestRetriesRateLimit(t *testing.T) {
	gen := &fakeGen{fn: func(call int) (string, error) {
		if call < 3 {
			return "", &llm.RateLimitError{}
		}
		return `{"theme":"A theme","motivating_texts":["t1"]}`, nil
	}}
	sug, err := NewSuggester(gen, fastRetry()).Suggest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A theme", sug.Theme)
	assert.Equal(t, 3, gen.calls)
}

func TestSuggestRejectsEmptyTheme(t *testing.T) {
	gen := &fakeGen{fn: func(int) (string, error) {
		return `{"theme":"","motivating_texts":["t1"]}`, nil
	}}
	_, err := NewSuggester(gen, fastRetry()).Suggest(context.Background())
	assert.Error(t, err)
}

func TestSuggestPropagatesProviderError(t *testing.T) {
	gen := &fakeGen{fn: func(int) (string, error) {
		return "", errors.New("model unavailable")
	}}
	_, err := NewSuggester(gen, fastRetry()).Suggest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}
