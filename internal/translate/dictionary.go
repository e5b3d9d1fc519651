// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package translate rewrites queries into the language the search sources
// understand best (English). The Dictionary translator is a best-effort,
// pure heuristic; the LLM translator delegates to a text-generation model
// and falls back to a Dictionary.
package translate

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Translator rewrites text into the target query language. Implementations
// never fail: when no rewrite is possible the input comes back unchanged.
type Translator interface {
	Translate(ctx context.Context, text, hint string) string
}

// Dictionary translates with curated phrase and word tables. The tables
// must not change after the first call to Translate.
type Dictionary struct {
	// Phrases are multi-word substitutions applied first, longest first.
	Phrases map[string]string

	// Words are single-token substitutions applied to tokens not covered by
	// a phrase.
	Words map[string]string

	// Indicators are target-language function words. Text holding at least
	// Threshold of them is treated as already translated.
	Indicators []string
	Threshold  int

	once  sync.Once
	rules []phraseRule
}

type phraseRule struct {
	re   *regexp.Regexp
	repl string
}

// NewDictionary returns a Portuguese-to-English dictionary translator
// covering the technology, health and education vocabulary of research
// topics.
func NewDictionary() *Dictionary {
	d := &Dictionary{
		Phrases:    defaultPhrases(),
		Words:      defaultWords(),
		Indicators: []string{"the", "and", "of", "to", "in", "for", "on", "with", "at", "by", "from"},
		Threshold:  2,
	}
	d.once.Do(d.prepare)
	return d
}

func (d *Dictionary) prepare() {
	order := make([]string, 0, len(d.Phrases))
	for p := range d.Phrases {
		order = append(order, p)
	}
	// Longest first so a phrase is never clobbered by a shorter one it
	// contains; ties alphabetical.
	slices.SortFunc(order, func(a, b string) int {
		if c := cmp.Compare(utf8.RuneCountInString(b), utf8.RuneCountInString(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	d.rules = make([]phraseRule, 0, len(order))
	for _, p := range order {
		re := regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(p) + `($|[^\p{L}\p{N}])`)
		d.rules = append(d.rules, phraseRule{re: re, repl: d.Phrases[p]})
	}
}

// Translate implements Translator. The hint is unused by the dictionary.
func (d *Dictionary) Translate(_ context.Context, text, _ string) string {
	return d.TranslateText(text)
}

// TranslateText rewrites text. It returns text unchanged when it already
// looks like English, has at most one word, or nothing matches.
func (d *Dictionary) TranslateText(text string) string {
	if strings.TrimSpace(text) == "" || d.IsTarget(text) {
		return text
	}
	d.once.Do(d.prepare)

	out := text
	for _, rule := range d.rules {
		out = replaceFold(out, rule.re, rule.repl)
	}
	out = d.translateWords(out)
	return matchLeadingCase(text, out)
}

// IsTarget reports whether text already looks like the target language:
// enough whole-word indicator hits, or a single word.
func (d *Dictionary) IsTarget(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) <= 1 {
		return true
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.TrimFunc(w, isPunct)] = true
	}
	hits := 0
	for _, ind := range d.Indicators {
		if set[ind] {
			hits++
		}
	}
	return hits >= d.Threshold
}

// translateWords substitutes single tokens, keeping punctuation around the
// token and the capitalization of its first letter. Plural "s" forms of a
// dictionary word are accepted.
func (d *Dictionary) translateWords(text string) string {
	fields := strings.Fields(text)
	for i, field := range fields {
		start := strings.IndexFunc(field, func(r rune) bool { return !isPunct(r) })
		if start < 0 {
			continue
		}
		end := strings.LastIndexFunc(field, func(r rune) bool { return !isPunct(r) })
		_, size := utf8.DecodeRuneInString(field[end:])
		end += size
		core := field[start:end]

		en, ok := d.lookupWord(strings.ToLower(core))
		if !ok {
			continue
		}
		if first, _ := utf8.DecodeRuneInString(core); unicode.IsUpper(first) {
			en = capitalize(en)
		}
		fields[i] = field[:start] + en + field[end:]
	}
	return strings.Join(fields, " ")
}

func (d *Dictionary) lookupWord(w string) (string, bool) {
	if en, ok := d.Words[w]; ok {
		return en, true
	}
	if base, found := strings.CutSuffix(w, "s"); found {
		if en, ok := d.Words[base]; ok {
			return en + "s", true
		}
	}
	return "", false
}

// replaceFold replaces every match of a whole-word phrase pattern in s,
// keeping the boundary characters captured around it.
func replaceFold(s string, re *regexp.Regexp, repl string) string {
	return re.ReplaceAllString(s, "${1}"+strings.ReplaceAll(repl, "$", "$$")+"${2}")
}

// matchLeadingCase capitalizes the first letter of out when the original
// text started with an upper-case letter.
func matchLeadingCase(original, out string) string {
	first, _ := utf8.DecodeRuneInString(strings.TrimSpace(original))
	if !unicode.IsUpper(first) {
		return out
	}
	trimmed := strings.TrimLeftFunc(out, unicode.IsSpace)
	lead := out[:len(out)-len(trimmed)]
	return lead + capitalize(trimmed)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func defaultPhrases() map[string]string {
	return map[string]string{
		"inteligência artificial na educação": "artificial intelligence in education",
		"inteligencia artificial na educacao": "artificial intelligence in education",
		"inteligência artificial na saúde":    "artificial intelligence in healthcare",
		"inteligencia artificial na saude":    "artificial intelligence in healthcare",
		"inteligência artificial":             "artificial intelligence",
		"inteligencia artificial":             "artificial intelligence",
		"aprendizado de máquina":              "machine learning",
		"aprendizado de maquina":              "machine learning",
		"aprendizagem profunda":               "deep learning",
		"redes neurais":                       "neural networks",
		"blockchain na saúde":                 "blockchain in healthcare",
		"blockchain na saude":                 "blockchain in healthcare",
		"saúde digital":                       "digital health",
		"saude digital":                       "digital health",
		"tecnologia educacional":              "educational technology",
		"aprendizagem adaptativa":             "adaptive learning",
		"tutoria automatizada":                "automated tutoring",
		"análise de dados educacionais":       "educational data analysis",
		"analise de dados educacionais":       "educational data analysis",
		"ia na educação":                      "ai in education",
		"ia na educacao":                      "ai in education",
		"ia na saúde":                         "ai in healthcare",
		"ia na saude":                         "ai in healthcare",
		"educação online":                     "online education",
		"educacao online":                     "online education",
		"ensino a distância":                  "distance learning",
		"ensino a distancia":                  "distance learning",
		"imagem médica":                       "medical imaging",
		"prontuário eletrônico":               "electronic health record",
		"na saúde":                            "in healthcare",
		"na saude":                            "in healthcare",
		"na educação":                         "in education",
		"na educacao":                         "in education",
	}
}

func defaultWords() map[string]string {
	return map[string]string{
		"educação":       "education",
		"educacao":       "education",
		"saúde":          "health",
		"saude":          "health",
		"medicina":       "medicine",
		"diagnóstico":    "diagnosis",
		"tratamento":     "treatment",
		"paciente":       "patient",
		"clínica":        "clinic",
		"médico":         "medical",
		"doença":         "disease",
		"câncer":         "cancer",
		"radiologia":     "radiology",
		"telemedicina":   "telemedicine",
		"tecnologia":     "technology",
		"inovação":       "innovation",
		"inovacao":       "innovation",
		"personalizada":  "personalized",
		"personalizado":  "personalized",
		"personalização": "personalization",
		"personalizacao": "personalization",
		"aprendizagem":   "learning",
		"ensino":         "teaching",
		"aluno":          "student",
		"professor":      "teacher",
		"professores":    "teachers",
		"escola":         "school",
		"universidade":   "university",
		"curso":          "course",
		"avaliação":      "assessment",
		"avaliacao":      "assessment",
		"desempenho":     "performance",
		"conteúdo":       "content",
		"conteudo":       "content",
		"remoto":         "remote",
		"remota":         "remote",
		"plataforma":     "platform",
		"sistema":        "system",
		"ferramenta":     "tool",
		"aplicativo":     "app",
		"aplicação":      "application",
		"aplicacao":      "application",
		"dados":          "data",
		"análise":        "analysis",
		"analise":        "analysis",
		"pesquisa":       "research",
		"estudo":         "study",
		"método":         "method",
		"metodo":         "method",
		"finanças":       "finance",
		"financas":       "finance",
		"segurança":      "security",
		"seguranca":      "security",
		"empresa":        "company",
		"mercado":        "market",
		"negócio":        "business",
		"negocio":        "business",
		"na":             "in",
		"em":             "in",
		"para":           "for",
		"com":            "with",
		"e":              "and",
	}
}
