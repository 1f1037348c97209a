package extract

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// languageSampleChars bounds how much text the detector sees. A few
// thousand characters is plenty for a confident call.
const languageSampleChars = 2000

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// The candidate set covers the languages the summary prompt contract can
// name. Loading every lingua model would cost hundreds of megabytes.
var candidateLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Russian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Arabic,
}

// DetectLanguage returns the English name of the dominant language in text
// ("English", "Chinese", ...), or "" when no confident call can be made.
// The result feeds the TARGET_LANGUAGE line of the summary prompts.
func DetectLanguage(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}
	runes := []rune(sample)
	if len(runes) > languageSampleChars {
		sample = string(runes[:languageSampleChars])
	}

	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidateLanguages...).
			Build()
	})

	lang, ok := detector.DetectLanguageOf(sample)
	if !ok {
		return ""
	}
	return lang.String()
}
