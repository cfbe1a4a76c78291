package utils

// Truncate returns s truncated to maxLen characters, with "..." appended if
// truncated. Truncation is rune-aware so multi-byte characters are not split.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
