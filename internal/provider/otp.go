package provider

// ExtractOTP scans a free-text status line for the first digit run whose
// length falls inside [minLen, maxLen]. Runs outside the window (long order
// ids, short noise) are skipped, not truncated.
func ExtractOTP(text string, minLen, maxLen int) (string, bool) {
	if minLen <= 0 {
		minLen = 4
	}
	if maxLen < minLen {
		maxLen = minLen
	}

	start := -1
	for i := 0; i <= len(text); i++ {
		digit := i < len(text) && text[i] >= '0' && text[i] <= '9'
		if digit {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if n := i - start; n >= minLen && n <= maxLen {
				return text[start:i], true
			}
			start = -1
		}
	}
	return "", false
}
