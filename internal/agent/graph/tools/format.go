package tools

import (
	"strconv"
	"strings"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
)

const (
	noItemsFound   = "No matching items found."
	noReviewsFound = "No matching reviews found."
)

// FormatItems renders an item ranking as '- <id>, price: <price>, <text>' lines.
func FormatItems(res *retrieval.Result) string {
	if res.Len() == 0 {
		return noItemsFound
	}
	var b strings.Builder
	for i, id := range res.IDs {
		b.WriteString("- ")
		b.WriteString(id)
		b.WriteString(", price: ")
		b.WriteString(formatPrice(res.Prices[i]))
		b.WriteString(", ")
		b.WriteString(oneLine(res.Texts[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatReviews renders a review ranking as '- <id>, <text>' lines.
func FormatReviews(res *retrieval.Result) string {
	if res.Len() == 0 {
		return noReviewsFound
	}
	var b strings.Builder
	for i, id := range res.IDs {
		b.WriteString("- ")
		b.WriteString(id)
		b.WriteString(", ")
		b.WriteString(oneLine(res.Texts[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatPrice(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// oneLine keeps each candidate on a single line so ids stay parseable.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
