package sentiment

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Great team, but I DON'T like the -- overtime!!")
	assert.Equal(t, []string{"great", "team", "but", "i", "don't", "like", "the", "overtime"}, got)
	assert.Empty(t, Tokenize("  ...  "))
}

func TestAnalyzeSumsValence(t *testing.T) {
	lex := NewLexicon(map[string]int{"great": 3, "bad": -3, "Helpful": 2})

	res := lex.Analyze("Great manager, helpful team")
	assert.Equal(t, 5.0, res.Score)
	assert.Equal(t, []string{"great", "helpful"}, res.Positive)
	assert.Empty(t, res.Negative)

	res = lex.Analyze("bad bad")
	assert.Equal(t, -6.0, res.Score)
	assert.Equal(t, []string{"bad", "bad"}, res.Negative)
}

func TestAnalyzeNegation(t *testing.T) {
	lex := NewLexicon(map[string]int{"good": 3, "bad": -3})

	assert.Equal(t, -3.0, lex.Analyze("not good").Score)
	assert.Equal(t, 3.0, lex.Analyze("isn't bad").Score)
	assert.Equal(t, 3.0, lex.Analyze("good, not great").Score)
}

func TestAnalyzeUnknownWords(t *testing.T) {
	res := NewLexicon(nil).Analyze("the quarterly planning meeting")
	assert.Zero(t, res.Score)
	assert.Len(t, res.Tokens, 4)
}

func TestLoadLexicon(t *testing.T) {
	lex, err := LoadLexicon(strings.NewReader("# comment\nhappy\t3\n\nsad -2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, lex.Len())
	assert.Equal(t, 1.0, lex.Analyze("happy but sad").Score)

	_, err = LoadLexicon(strings.NewReader("happy\tvery\n"))
	assert.Error(t, err)

	_, err = LoadLexicon(strings.NewReader("lonely\n"))
	assert.Error(t, err)
}

func TestDefaultLexiconConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	scores := make([]float64, 8)
	for i := range scores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scores[i] = Default().Analyze("I love my supportive team").Score
		}(i)
	}
	wg.Wait()

	require.Greater(t, Default().Len(), 3000)
	for _, s := range scores {
		assert.Equal(t, 5.0, s)
	}
}

func TestDefaultLexiconCommonVocabulary(t *testing.T) {
	lex := Default()
	cases := map[string]float64{
		"outstanding":    5,
		"frustrating":    -2,
		"appreciated":    2,
		"disappointing":  -2,
		"recommend":      2,
		"exhausted":      -2,
		"ignored":        -2,
		"hopeless":       -2,
		"wonderful":      4,
		"the report was": 0,
	}
	for text, want := range cases {
		assert.Equal(t, want, lex.Analyze(text).Score, text)
	}
}
