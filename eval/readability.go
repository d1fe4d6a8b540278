package eval

import (
	"math"
	"strings"
	"unicode"
)

// Target readability bands per degree level, expressed as a Gaussian over the
// Flesch-Kincaid grade level. Variance 4 keeps most of the mass within two
// grades of the target.
var degreeTargets = map[DegreeLevel]float64{
	DegreeBachelors: 12,
	DegreeMasters:   14,
	DegreePhD:       16,
}

const readabilityVariance = 4.0

// readabilityScore maps the answer's grade level onto the degree target
// Gaussian. Unknown degree levels use the Bachelors profile.
func readabilityScore(answer string, degree DegreeLevel) float64 {
	mu, ok := degreeTargets[degree]
	if !ok {
		mu = degreeTargets[DegreeBachelors]
	}
	g := fleschKincaidGrade(answer)
	diff := g - mu
	return clamp01(math.Exp(-(diff * diff) / (2 * readabilityVariance)))
}

// fleschKincaidGrade computes the Flesch-Kincaid grade level:
// 0.39*(words/sentences) + 11.8*(syllables/words) - 15.59.
func fleschKincaidGrade(text string) float64 {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	sentences := countSentences(text)
	if sentences == 0 {
		sentences = 1
	}

	var syllables int
	for _, w := range words {
		syllables += countSyllables(w)
	}

	grade := 0.39*(float64(len(words))/float64(sentences)) +
		11.8*(float64(syllables)/float64(len(words))) - 15.59
	if grade < 0 {
		return 0
	}
	return grade
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			count++
		}
	}
	return count
}

// countSyllables estimates syllables by counting vowel groups, discounting a
// trailing silent 'e'. Every word has at least one syllable.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

// splitSentences returns the non-empty sentences of text, used for local
// coherence scoring.
func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
