// Package utils provides shared utilities for text, tokens, and logging.
package utils

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// EstimateTokens approximates the token count of text as len(text)/4.
// This is the single estimator used for context budgeting, schema sizing, and
// usage reporting; all budget decisions and reported numbers come from the
// same heuristic so telemetry matches truncation behavior.
func EstimateTokens(text string) int {
	return len(text) / 4
}
