package generator

import (
	"math/rand"
	"strings"

	"github.com/sells-group/skill-engine/internal/model"
)

// noiseLevels sets the probability of applying any noise at all per
// difficulty grade.
var noiseLevels = map[model.Difficulty]float64{
	model.DifficultyEasy:        0.0,
	model.DifficultyMedium:      0.2,
	model.DifficultyHard:        0.4,
	model.DifficultyAdversarial: 0.6,
}

var (
	noisePrefixes = []string{"采购", "询价", "需要", "订购", "紧急采购"}
	noiseSuffixes = []string{"若干", "100根", "一批", "1000个", "等"}
)

// noiseInjector distorts generated inputs with procurement-style noise.
type noiseInjector struct {
	rng *rand.Rand
}

// inject applies at most one randomly chosen noise transform, gated by the
// difficulty's noise level.
func (n *noiseInjector) inject(text string, difficulty model.Difficulty) string {
	if n.rng.Float64() > noiseLevels[difficulty] {
		return text
	}
	switch n.rng.Intn(4) {
	case 0:
		return noisePrefixes[n.rng.Intn(len(noisePrefixes))] + " " + text
	case 1:
		return text + " " + noiseSuffixes[n.rng.Intn(len(noiseSuffixes))]
	case 2:
		return n.swapAdjacent(text)
	default:
		return n.padWord(text)
	}
}

// swapAdjacent exchanges two adjacent characters away from the edges.
func (n *noiseInjector) swapAdjacent(text string) string {
	runes := []rune(text)
	if len(runes) < 4 {
		return text
	}
	idx := 1 + n.rng.Intn(len(runes)-2)
	runes[idx], runes[idx+1] = runes[idx+1], runes[idx]
	return string(runes)
}

// padWord doubles the whitespace after one random word.
func (n *noiseInjector) padWord(text string) string {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}
	idx := n.rng.Intn(len(words))
	words[idx] += " "
	return strings.Join(words, " ")
}
