package extraction

import (
	"regexp"
	"strings"

	"goresearch/domain/research"
)

// Candidate is one raw extraction before aggregation
type Candidate struct {
	Entity   string            `json:"entity"`
	Relation research.Relation `json:"relation"`
	Target   string            `json:"target"`
	Position int               `json:"position"`
	Context  string            `json:"context"`
}

// Extractor turns text into evidence candidates
type Extractor interface {
	Extract(text string) []Candidate
}

// Entity type tags emitted by the lexical pass as IS_A targets
const (
	TypeMethod   = "METHOD"
	TypeSystem   = "SYSTEM"
	TypeStudy    = "STUDY"
	TypeMaterial = "MATERIAL"
	TypeDomain   = "DOMAIN"
	TypeMetric   = "METRIC"
	TypeOutcome  = "OUTCOME"
)

type lexicalClass struct {
	tag string
	re  *regexp.Regexp
}

type relationalPattern struct {
	relation research.Relation
	re       *regexp.Regexp
}

var lexicalClasses = []lexicalClass{
	{TypeMethod, regexp.MustCompile(`\b(method|technique|approach|algorithm|procedure|process|synthesis|reduction|oxidation|electrolysis|model)s?\b`)},
	{TypeSystem, regexp.MustCompile(`\b(system|architecture|framework|platform|reactor|device|network|pipeline)s?\b`)},
	{TypeStudy, regexp.MustCompile(`\b(study|studies|experiment|trial|survey|analysis|analyses|evaluation)s?\b`)},
	{TypeMaterial, regexp.MustCompile(`\b([a-z]+-[a-z]+ (?:catalyst|alloy|oxide)|catalyst|polymer|alloy|compound|electrode|membrane|enzyme|copper|zinc|nickel|graphene|solvent)s?\b`)},
	{TypeDomain, regexp.MustCompile(`\b(chemistry|biology|physics|electrochemistry|materials science|energy|climate|medicine|genomics)\b`)},
	{TypeMetric, regexp.MustCompile(`\b(efficiency|accuracy|yield|selectivity|conversion|throughput|latency|rate|stability|precision)\b`)},
	{TypeOutcome, regexp.MustCompile(`\b(improvement|increase|decrease|gain|formation|performance)s?\b`)},
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"for": true, "in": true, "on": true, "to": true, "with": true, "by": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
}

// phrase matches up to three words, used for subjects and objects
const phrase = `\b([a-z0-9][a-z0-9-]*(?: [a-z0-9][a-z0-9-]*){0,2})`

var relationalPatterns = []relationalPattern{
	{research.RelationImproves, regexp.MustCompile(phrase + ` (?:improves|enhances|increases|boosts) ` + phrase)},
	{research.RelationReduces, regexp.MustCompile(phrase + ` (?:reduces|decreases|lowers|minimizes) ` + phrase)},
	{research.RelationEnables, regexp.MustCompile(phrase + ` (?:enables|allows|facilitates) ` + phrase)},
	{research.RelationRequires, regexp.MustCompile(phrase + ` (?:requires|needs|depends on) ` + phrase)},
	{research.RelationBasedOn, regexp.MustCompile(phrase + ` (?:is based on|are based on|builds on|derives from) ` + phrase)},
}

var numericPattern = regexp.MustCompile(`\b([a-z][a-z-]*(?: [a-z][a-z-]*)?) (?:by|of) (\d+(?:\.\d+)?) ?(%|percent|times|fold)`)

// PatternExtractor is the heuristic extractor: three regex passes over
// lower-cased text with a fixed context window.
type PatternExtractor struct {
	window int
}

// NewPatternExtractor creates an extractor with a ±window character context
func NewPatternExtractor(window int) *PatternExtractor {
	if window < 0 {
		window = 0
	}
	return &PatternExtractor{window: window}
}

// Extract runs the lexical, relational and numeric passes and concatenates
// their results. Duplicates are kept; aggregation merges them.
func (e *PatternExtractor) Extract(text string) []Candidate {
	text = strings.ToLower(text)
	out := make([]Candidate, 0)
	if strings.TrimSpace(text) == "" {
		return out
	}
	out = append(out, e.lexical(text)...)
	out = append(out, e.relational(text)...)
	out = append(out, e.numeric(text)...)
	return out
}

func (e *PatternExtractor) lexical(text string) []Candidate {
	var out []Candidate
	for _, class := range lexicalClasses {
		for _, loc := range class.re.FindAllStringSubmatchIndex(text, -1) {
			word := text[loc[2]:loc[3]]
			if stopWords[word] {
				continue
			}
			out = append(out, Candidate{
				Entity:   word,
				Relation: research.RelationIsA,
				Target:   class.tag,
				Position: loc[0],
				Context:  e.context(text, loc[0], loc[1]),
			})
		}
	}
	return out
}

func (e *PatternExtractor) relational(text string) []Candidate {
	var out []Candidate
	for _, p := range relationalPatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			subject := trimStopWords(text[loc[2]:loc[3]])
			object := trimStopWords(text[loc[4]:loc[5]])
			if subject == "" || object == "" {
				continue
			}
			out = append(out, Candidate{
				Entity:   subject,
				Relation: p.relation,
				Target:   object,
				Position: loc[0],
				Context:  e.context(text, loc[0], loc[1]),
			})
		}
	}
	return out
}

func (e *PatternExtractor) numeric(text string) []Candidate {
	var out []Candidate
	for _, loc := range numericPattern.FindAllStringSubmatchIndex(text, -1) {
		entity := trimStopWords(text[loc[2]:loc[3]])
		if entity == "" {
			continue
		}
		value := text[loc[4]:loc[5]]
		unit := text[loc[6]:loc[7]]
		if unit != "%" {
			value += " "
		}
		out = append(out, Candidate{
			Entity:   entity,
			Relation: research.RelationHasValue,
			Target:   value + unit,
			Position: loc[0],
			Context:  e.context(text, loc[0], loc[1]),
		})
	}
	return out
}

func (e *PatternExtractor) context(text string, start, end int) string {
	from := start - e.window
	if from < 0 {
		from = 0
	}
	to := end + e.window
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}

// trimStopWords drops leading and trailing stop words from a captured phrase
func trimStopWords(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && stopWords[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && stopWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
