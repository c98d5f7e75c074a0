package generator

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/sells-group/skill-engine/internal/model"
)

// domainTemplates holds the built-in expression templates, ordered from
// standard phrasing to sloppy phrasing within each domain.
var domainTemplates = map[string][]string{
	"pipe": {
		"{材质}管 DN{公称直径} PN{公称压力}",
		"{材质}管材 DN{公称直径}mm PN{公称压力}MPa",
		"DN{公称直径} PN{公称压力} {材质}管",
		"{材质}管 DN{公称直径}",
		"DN{公称直径}管 {材质}",
		"{材质}管道 直径{公称直径} 压力{公称压力}",
		"管材规格: DN{公称直径}, PN{公称压力}",
	},
	"fastener": {
		"{头型}螺栓 {规格} {材质} {表面处理}",
		"{材质}{头型}螺栓{规格}",
		"螺栓 {规格} {材质}",
		"{规格}螺栓",
		"{头型}螺丝 {规格}",
	},
	"default": {
		"{name} {规格}",
		"{材质} {name}",
	},
}

// synonyms substitute into medium+ difficulty renderings.
var synonyms = map[string][]string{
	"管":     {"管材", "管道", "管子"},
	"螺栓":    {"螺丝", "螺柱", "bolt"},
	"六角头":   {"六角", "外六角", "Hex"},
	"PVC-U": {"UPVC", "PVC", "硬PVC", "聚氯乙烯"},
	"PPR":   {"PP-R", "无规共聚聚丙烯"},
	"不锈钢":   {"304不锈钢", "316不锈钢", "不锈钢材质"},
}

// synonymKeys fixes the substitution order; map iteration would make
// generated batches irreproducible under a fixed seed.
var synonymKeys = []string{"管", "螺栓", "六角头", "PVC-U", "PPR", "不锈钢"}

var typoPairs = []struct{ correct, typo string }{
	{"管材", "管才"},
	{"螺栓", "螺拴"},
	{"直径", "直经"},
	{"压力", "压励"},
}

var (
	placeholderRe = regexp.MustCompile(`\{[^}]+\}`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	unitSuffixRe  = regexp.MustCompile(`(mm|MPa|cm|m)\b`)
)

// variantProb is the chance a rendering swaps in non-canonical wording when
// variants are enabled.
const variantProb = 0.3

// templateEngine renders attribute combinations into input expressions with
// difficulty-graded distortion.
type templateEngine struct {
	templates []string
	variants  bool
	rng       *rand.Rand
}

func newTemplateEngine(domain string, variants bool, rng *rand.Rand) *templateEngine {
	templates, ok := domainTemplates[domain]
	if !ok {
		templates = domainTemplates["default"]
	}
	return &templateEngine{templates: templates, variants: variants, rng: rng}
}

// expression renders one input text for the attribute set at the requested
// difficulty: easy is the verbatim template, each higher grade layers more
// distortion on top of the previous one.
func (e *templateEngine) expression(attrs map[string]model.Scalar, difficulty model.Difficulty) string {
	text := renderTemplate(e.selectTemplate(difficulty), attrs)

	switch difficulty {
	case model.DifficultyMedium:
		text = e.mediumTransforms(text)
	case model.DifficultyHard:
		text = e.hardTransforms(text)
	case model.DifficultyAdversarial:
		text = e.adversarialTransforms(text)
	}
	return strings.TrimSpace(text)
}

// selectTemplate picks cleaner templates for easier grades. With variants
// enabled, any grade may occasionally draw an alternate template.
func (e *templateEngine) selectTemplate(difficulty model.Difficulty) string {
	if e.variants && e.rng.Float64() < variantProb {
		return e.templates[e.rng.Intn(len(e.templates))]
	}
	switch difficulty {
	case model.DifficultyEasy:
		return e.templates[0]
	case model.DifficultyMedium:
		idx := len(e.templates) / 2
		if idx >= len(e.templates) {
			idx = len(e.templates) - 1
		}
		return e.templates[idx]
	default:
		return e.templates[e.rng.Intn(len(e.templates))]
	}
}

// renderTemplate substitutes {attrName} placeholders and cleans up any that
// had no value.
func renderTemplate(template string, attrs map[string]model.Scalar) string {
	text := template
	for name, value := range attrs {
		text = strings.ReplaceAll(text, "{"+name+"}", value.String())
	}
	text = placeholderRe.ReplaceAllString(text, "")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(text, " "))
}

// mediumTransforms applies synonym substitution, case folding, and unit
// omission, each independently and probabilistically.
func (e *templateEngine) mediumTransforms(text string) string {
	if e.rng.Float64() < 0.5 {
		text = e.replaceSynonyms(text, 0.3)
	}
	if e.rng.Float64() < 0.5 && e.rng.Float64() < 0.3 {
		text = strings.ToLower(text)
	}
	if e.rng.Float64() < 0.5 && e.rng.Float64() < 0.5 {
		text = unitSuffixRe.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// hardTransforms layers token shuffling and irrelevant prefixes on top of
// the medium transforms.
func (e *templateEngine) hardTransforms(text string) string {
	text = e.mediumTransforms(text)

	if e.rng.Float64() < 0.3 {
		words := strings.Fields(text)
		e.rng.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
		text = strings.Join(words, " ")
	}

	if e.rng.Float64() < 0.3 {
		prefixes := []string{"一批", "急需", "现货", "优质", "国标"}
		text = prefixes[e.rng.Intn(len(prefixes))] + " " + text
	}

	return strings.TrimSpace(text)
}

// adversarialTransforms adds typo injection on top of the hard transforms.
func (e *templateEngine) adversarialTransforms(text string) string {
	text = e.hardTransforms(text)
	if e.rng.Float64() < 0.5 {
		text = e.injectTypos(text, 0.1)
	}
	return strings.TrimSpace(text)
}

func (e *templateEngine) replaceSynonyms(text string, prob float64) string {
	for _, word := range synonymKeys {
		if strings.Contains(text, word) && e.rng.Float64() < prob {
			alts := synonyms[word]
			text = strings.Replace(text, word, alts[e.rng.Intn(len(alts))], 1)
		}
	}
	return text
}

func (e *templateEngine) injectTypos(text string, prob float64) string {
	if e.rng.Float64() > prob {
		return text
	}
	for _, pair := range typoPairs {
		if strings.Contains(text, pair.correct) && e.rng.Float64() < prob {
			return strings.Replace(text, pair.correct, pair.typo, 1)
		}
	}
	return text
}
