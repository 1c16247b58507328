package budget

import (
	"unicode/utf8"

	"github.com/randalmurphal/studykit/provider"
)

// CharsPerToken is the fixed character-to-token ratio used for estimation.
// Approximately 4 characters equals 1 token for English text.
const CharsPerToken = 4

// Estimate returns the approximate token count of text.
// Counts runes rather than bytes so multi-byte text is not over-charged.
// Actual token counts vary by tokenizer; this is a heuristic.
func Estimate(text string) int {
	return utf8.RuneCountInString(text) / CharsPerToken
}

// EstimateMessages returns the approximate token count of an entire turn
// sequence, summing the content of every message.
func EstimateMessages(msgs []provider.Message) int {
	total := 0
	for _, m := range msgs {
		total += Estimate(m.Content)
	}
	return total
}
