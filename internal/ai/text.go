package ai

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/photodiary/server/internal/models"
)

// Authors is the set of synthetic names AI comments are posted under
var Authors = []string{
	"PhotoFan",
	"MemoryMaker",
	"SunnyDays",
	"Shutterbug",
	"Wanderlust",
	"Dreamer",
	"Explorer_22",
	"GoodVibesOnly",
}

// RandomAuthor picks one of Authors
func RandomAuthor() string {
	return Authors[rand.IntN(len(Authors))]
}

// SanitizeTags applies the tag rules to model output, which may be a single
// comma separated string or a list.
func SanitizeTags(raw ...string) []string {
	return models.NormalizeTags(raw)
}

// CleanText trims model output, strips wrapping quotes and bounds its length.
// Empty output is reported as models.ErrAIUnavailable.
func CleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'`")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrAIUnavailable)
	}

	if r := []rune(text); len(r) > models.MaxTextLength {
		text = strings.TrimSpace(string(r[:models.MaxTextLength]))
	}
	return text, nil
}
