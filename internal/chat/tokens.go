package chat

// EstimateTokens approximates a message's token count as one token per four
// characters, rounded up. Used for budget checks and usage display; the
// upstream provider's own accounting is authoritative for billing.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + 3) / 4
}
