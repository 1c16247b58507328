package delegate

import "strings"

// Classifier decides which specialists should answer a user message.
// Select receives the coordinator's free-text reply and the original user
// message, and returns specialist names in selection order. An empty
// result means the engine falls back to its default specialist.
type Classifier interface {
	Select(coordinatorReply, userMessage string) []string
}

// Rule binds one specialist to the domain terms that suggest it.
type Rule struct {
	Specialist string
	Keywords   []string
}

// DefaultRules is the built-in delegation table for the study-chat agent
// library.
var DefaultRules = []Rule{
	{"Biblical Theologian", []string{"scripture", "bible", "verse", "passage", "chapter", "testament", "doctrine", "theology", "belief", "interpretation", "meaning", "spiritual"}},
	{"Geographical Strategist", []string{"where", "location", "region", "place", "map", "geography", "land"}},
	{"Historical Contextualizer", []string{"when", "timeline", "history", "period", "era", "date", "time", "historical"}},
	{"Linguistic Expert", []string{"word", "meaning", "translation", "language", "hebrew", "greek", "aramaic"}},
	{"Literary Analyst", []string{"genre", "style", "structure", "literary", "narrative", "poetry", "metaphor"}},
}

// KeywordClassifier is the default two-stage heuristic: first a
// case-insensitive scan of the coordinator reply for known specialist
// names, then — only when that yields nothing — a keyword scan of the
// user message. Rule order fixes selection order. The table is immutable
// after construction and safe for concurrent use.
type KeywordClassifier struct {
	rules []Rule
}

// NewKeywordClassifier builds a classifier over the given rules.
// Nil rules use DefaultRules.
func NewKeywordClassifier(rules []Rule) *KeywordClassifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &KeywordClassifier{rules: rules}
}

// Select implements Classifier.
func (c *KeywordClassifier) Select(coordinatorReply, userMessage string) []string {
	var selected []string

	reply := strings.ToLower(coordinatorReply)
	for _, r := range c.rules {
		if strings.Contains(reply, strings.ToLower(r.Specialist)) {
			selected = append(selected, r.Specialist)
		}
	}
	if len(selected) > 0 {
		return selected
	}

	msg := strings.ToLower(userMessage)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(msg, kw) {
				selected = append(selected, r.Specialist)
				break
			}
		}
	}
	return selected
}
