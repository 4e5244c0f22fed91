// Package tokens estimates token counts for budget checks. The ~4 chars per
// token heuristic is good enough for threshold comparison, not billing.
package tokens

// EstimateText estimates the token count of a text payload.
func EstimateText(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
