package retrieval

// EstimateTokens approximates the token count of a text. One token per four
// bytes tracks common BPE tokenizers closely enough for budget accounting.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
