package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShape_WithinBudgetUnchanged(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 100)
	require.Equal(t, body, Shape(body, 2000))
}

func TestShape_Idempotent(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("paragraph one.\n\n", 1000)
	shaped := Shape(body, 2000)
	require.Equal(t, shaped, Shape(shaped, 2000))
}

func TestShape_OversizedGetsMarkerAndFitsBudget(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 10_000)
	shaped := Shape(body, 2000)
	require.True(t, strings.HasSuffix(shaped, TruncationMarker))
	require.LessOrEqual(t, TokenCount(shaped), 2000)
}

func TestShape_CutsAtParagraphBoundary(t *testing.T) {
	t.Parallel()

	// Paragraphs of 100 chars, so a break always sits above the 80% floor.
	paragraph := strings.Repeat("w", 98) + "\n\n"
	body := strings.Repeat(paragraph, 200)
	shaped := Shape(body, 2000)
	require.True(t, strings.HasSuffix(shaped, TruncationMarker))
	require.LessOrEqual(t, TokenCount(shaped), 2000)

	// The cut must land on a paragraph edge: strip the marker and the
	// remainder ends exactly where a paragraph does.
	trimmed := strings.TrimSuffix(shaped, TruncationMarker)
	require.True(t, strings.HasSuffix(trimmed, strings.Repeat("w", 98)))
}

func TestShape_NoBoundaryAboveFloorCutsAtLimit(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("y", 10_000) // no structure at all
	shaped := Shape(body, 2000)
	require.True(t, strings.HasSuffix(shaped, TruncationMarker))
	require.Len(t, shaped, 2000*CharsPerToken)
}

func TestShape_HeadingBoundary(t *testing.T) {
	t.Parallel()

	section := "# Heading\n" + strings.Repeat("z", 600) + "\n"
	body := strings.Repeat(section, 50)
	shaped := Shape(body, 2000)
	require.True(t, strings.HasSuffix(shaped, TruncationMarker))
	require.LessOrEqual(t, TokenCount(shaped), 2000)
}

func TestTokenCount_Ratio(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, TokenCount(""))
	require.Equal(t, 1, TokenCount("abc"))
	require.Equal(t, 1, TokenCount("abcd"))
	require.Equal(t, 2, TokenCount("abcde"))
	require.Equal(t, 25, TokenCount(strings.Repeat("a", 100)))
}
