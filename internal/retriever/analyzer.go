package retriever

import (
	"regexp"
	"strings"

	"github.com/queryscout/queryscout/internal/models"
)

// Weight selection inspects the query for lexical vs. semantic intent.
// Queries full of identifiers and SQL keywords want exact matching; questions
// about meaning and intent want embedding similarity. The exact keyword lists
// are tunable heuristics, not load-bearing constants.

var identifierToken = regexp.MustCompile(`\b\w+[._]\w+\b`)

var sqlKeywords = []string{
	"select", "from", "join", "where", "group by", "order by",
	"having", "union", "insert", "update", "delete", "with",
}

var exactIntentWords = []string{
	"exact", "exactly", "named", "called", "literal", "verbatim", "spelled",
}

var semanticIntentWords = []string{
	"how", "why", "what", "explain", "describe", "meaning", "purpose",
	"similar", "difference", "compare", "best", "understand", "overview",
}

// lexicalSignals counts exact-match cues: quoted identifiers, dotted or
// snake_case tokens, SQL keywords, and exact-intent verbs.
func lexicalSignals(query string) int {
	lower := strings.ToLower(query)
	signals := 0
	if strings.ContainsAny(query, "`'\"") {
		signals++
	}
	signals += len(identifierToken.FindAllString(lower, -1))
	for _, kw := range sqlKeywords {
		if strings.Contains(lower, kw) {
			signals++
		}
	}
	for _, w := range exactIntentWords {
		if containsWord(lower, w) {
			signals++
		}
	}
	return signals
}

// semanticSignals counts conceptual-question cues.
func semanticSignals(query string) int {
	lower := strings.ToLower(query)
	signals := 0
	for _, w := range semanticIntentWords {
		if containsWord(lower, w) {
			signals++
		}
	}
	return signals
}

func containsWord(text, word string) bool {
	for _, f := range strings.Fields(text) {
		if strings.Trim(f, "?.,!;:") == word {
			return true
		}
	}
	return false
}

// ChooseWeights picks fusion weights from the query's shape. Lexical queries
// shift weight toward keyword search, conceptual questions toward vector
// search; with no clear signal the default applies.
func ChooseWeights(query string, defaultVector, lexicalVector, semanticVector float64) models.SearchWeights {
	lexical := lexicalSignals(query)
	semantic := semanticSignals(query)
	switch {
	case lexical > semantic:
		return models.NewSearchWeights(lexicalVector, 1-lexicalVector)
	case semantic > lexical:
		return models.NewSearchWeights(semanticVector, 1-semanticVector)
	default:
		return models.NewSearchWeights(defaultVector, 1-defaultVector)
	}
}
