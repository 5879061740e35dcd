// Package langdetect guesses the language of a transcript.
package langdetect

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// languages are the ones the recognizers are tuned for.
var languages = []lingua.Language{
	lingua.Chinese,
	lingua.English,
	lingua.Japanese,
	lingua.Korean,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Russian,
}

var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		Build()
})

// minRunes is the shortest input worth classifying.
const minRunes = 2

// Detect returns the ISO 639-1 code and English name of text's language,
// or ("auto", "") when it cannot tell.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minRunes {
		return "auto", ""
	}
	lang, ok := detector().DetectLanguageOf(text)
	if !ok {
		return "auto", ""
	}
	return strings.ToLower(lang.IsoCode639_1().String()), lang.String()
}

// Name returns the English name of text's language, or "" when unsure.
func Name(text string) string {
	_, name := Detect(text)
	return name
}
