// Package sentiment provides a bag-of-words lexicon scorer for free-text answers.
//
// The scorer only produces a raw valence sum. Mapping that sum onto the
// [-1, 1] feedback scale is the caller's concern.
package sentiment

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

//go:embed afinn.tsv
var embeddedLexicon string

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "non": true, "neither": true, "nor": true,
	"cant": true, "can't": true, "cannot": true, "dont": true, "don't": true,
	"doesnt": true, "doesn't": true, "didnt": true, "didn't": true,
	"isnt": true, "isn't": true, "wasnt": true, "wasn't": true,
	"arent": true, "aren't": true, "werent": true, "weren't": true,
	"wont": true, "won't": true, "wouldnt": true, "wouldn't": true,
	"shouldnt": true, "shouldn't": true, "hardly": true,
}

// Analysis is the result of scoring one text.
type Analysis struct {
	Score    float64  `json:"score"`
	Tokens   []string `json:"tokens"`
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

// Analyzer maps free text to a raw, unbounded valence score.
type Analyzer interface {
	Analyze(text string) Analysis
}

// Lexicon is an immutable word valence table. It is safe for concurrent use.
type Lexicon struct {
	words map[string]int
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the lexicon compiled into the binary.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := LoadLexicon(strings.NewReader(embeddedLexicon))
		if err != nil {
			panic(fmt.Sprintf("sentiment: embedded lexicon: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// NewLexicon builds a lexicon from an in-memory table. Keys are lower-cased.
func NewLexicon(words map[string]int) *Lexicon {
	m := make(map[string]int, len(words))
	for w, v := range words {
		m[strings.ToLower(w)] = v
	}
	return &Lexicon{words: m}
}

// LoadLexicon reads "word<TAB>valence" lines. Blank lines and lines starting
// with '#' are ignored.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	words := map[string]int{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		idx := strings.LastIndexAny(text, "\t ")
		if idx <= 0 {
			return nil, fmt.Errorf("line %d: missing valence", line)
		}
		v, err := strconv.Atoi(strings.TrimSpace(text[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		words[strings.ToLower(strings.TrimSpace(text[:idx]))] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Lexicon{words: words}, nil
}

// Len returns the number of scored words.
func (l *Lexicon) Len() int { return len(l.words) }

// Analyze sums the valence of every known token. A token directly preceded by
// a negator contributes with its sign flipped.
func (l *Lexicon) Analyze(text string) Analysis {
	tokens := Tokenize(text)
	out := Analysis{Tokens: tokens, Positive: []string{}, Negative: []string{}}
	for i, tok := range tokens {
		v, ok := l.words[tok]
		if !ok {
			continue
		}
		if i > 0 && negators[tokens[i-1]] {
			v = -v
		}
		switch {
		case v > 0:
			out.Positive = append(out.Positive, tok)
		case v < 0:
			out.Negative = append(out.Negative, tok)
		}
		out.Score += float64(v)
	}
	return out
}

// Tokenize lower-cases text and splits it into words. Letters, digits,
// apostrophes and hyphens are kept; everything else separates tokens.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

var _ Analyzer = (*Lexicon)(nil)
