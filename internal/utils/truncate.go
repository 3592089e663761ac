package utils

// TruncateRunes caps s at max characters, counting runes rather than bytes so
// multi-byte characters are never split.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
