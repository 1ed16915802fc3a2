package cache

import "strings"

// CharsPerToken is the fixed character-to-token ratio used for budgeting.
const CharsPerToken = 4

// TruncationMarker is appended to every body cut by Shape.
const TruncationMarker = "\n\n[Content truncated]"

// TokenCount approximates the token footprint of a body.
func TokenCount(body string) int {
	return (len(body) + CharsPerToken - 1) / CharsPerToken
}

// Shape enforces the token budget on a body. Bodies within budget are
// returned unchanged, so shaping an already-shaped body is a no-op. Oversized
// bodies are cut at the nearest preceding paragraph break or heading marker
// that retains at least 80% of the budgeted length; without such a boundary
// the cut lands at the exact limit. The cut limit is reduced by the marker
// length so the marked body still fits the budget.
func Shape(body string, tokenBudget int) string {
	limit := tokenBudget * CharsPerToken
	if len(body) <= limit {
		return body
	}
	cut := limit - len(TruncationMarker)
	if cut <= 0 {
		return TruncationMarker[:limit]
	}
	floor := cut * 8 / 10
	if boundary := lastStructuralBoundary(body[:cut]); boundary >= floor {
		cut = boundary
	}
	return strings.TrimRight(body[:cut], "\n") + TruncationMarker
}

// lastStructuralBoundary finds the rightmost paragraph break or heading
// start in body, or -1 when there is none.
func lastStructuralBoundary(body string) int {
	paragraph := strings.LastIndex(body, "\n\n")
	heading := strings.LastIndex(body, "\n#")
	if heading > paragraph {
		return heading
	}
	return paragraph
}
