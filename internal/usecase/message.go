package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"DealsScanner/internal/domain"
)

const (
	defaultMaxTitleLength = 120
	titleEllipsis         = "..."
	dealHashtags          = "#AmazonDeals #MegaSavings #ShopNow"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// emojiFor picks the headline emoji from the category score band.
func emojiFor(score int) string {
	switch {
	case score > 90:
		return "👕"
	case score > 85:
		return "🏠"
	case score > 80:
		return "💄"
	case score > 75:
		return "🎮"
	default:
		return "🏷️"
	}
}

// truncateTitle shortens titles longer than limit runes to limit runes ending in "...".
func truncateTitle(title string, limit int) string {
	if limit <= len(titleEllipsis) {
		limit = defaultMaxTitleLength
	}
	if utf8.RuneCountInString(title) <= limit {
		return title
	}
	runes := []rune(title)
	return strings.TrimRight(string(runes[:limit-len(titleEllipsis)]), " ") + titleEllipsis
}

// RenderMessage formats a record as the channel's Markdown announcement.
func RenderMessage(p domain.ProductRecord, maxTitle int) string {
	title := markdownEscaper.Replace(truncateTitle(p.Title, maxTitle))

	savings := p.DiscountAmount.String()
	if p.DiscountAmount.Valid {
		savings = fmt.Sprintf("%s (%.0f%% off)", savings, p.DiscountPercent)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *MEGA DEAL ALERT!* 🔥\n\n", emojiFor(p.CategoryScore))
	fmt.Fprintf(&b, "📦 *%s*\n\n", title)
	fmt.Fprintf(&b, "💰 *Price:* %s\n", p.CurrentPrice)
	fmt.Fprintf(&b, "🏷️ *MRP:* %s\n", p.ReferencePrice)
	fmt.Fprintf(&b, "🎯 *You Save:* %s\n", savings)
	fmt.Fprintf(&b, "✅ *Status:* %s\n\n", markdownEscaper.Replace(p.Availability))
	fmt.Fprintf(&b, "🛒 %s\n\n", p.AffiliateURL)
	b.WriteString(dealHashtags)
	return b.String()
}
