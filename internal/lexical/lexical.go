// Package lexical provides accent-insensitive tokenisation for Spanish
// regulation text. It backs the offline embedder, keyword query
// expansion, lexical re-ranking and answer matching in evaluation.
package lexical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords are dropped by Tokens. Short function words carry no topic.
var stopwords = map[string]bool{
	"a": true, "al": true, "como": true, "con": true, "cual": true, "cuales": true,
	"de": true, "del": true, "el": true, "en": true, "es": true, "la": true,
	"las": true, "lo": true, "los": true, "o": true, "para": true, "por": true,
	"que": true, "se": true, "si": true, "son": true, "su": true, "sus": true,
	"un": true, "una": true, "y": true, "the": true, "of": true, "and": true,
}

// Fold lowercases s and strips diacritics ("Matrícula" -> "matricula").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Words splits folded text into letter/digit runs, keeping stopwords.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokens returns the content words of s in order.
func Tokens(s string) []string {
	words := Words(s)
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Set returns the distinct tokens of s.
func Set(s string) map[string]struct{} {
	toks := Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b| over the token sets of two texts.
// Two texts without content words score 0.
func Jaccard(a, b string) float64 {
	sa, sb := Set(a), Set(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

// Coverage returns the fraction of the query's tokens present in text.
func Coverage(query, text string) float64 {
	q := Set(query)
	if len(q) == 0 {
		return 0
	}
	t := Set(text)
	hit := 0
	for tok := range q {
		if _, ok := t[tok]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(q))
}
