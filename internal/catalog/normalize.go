package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"DealsScanner/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// LinkBuilder renders affiliate links for a marketplace.
type LinkBuilder struct {
	Domain     string
	PartnerTag string
}

// Link returns the affiliate product URL for id.
func (b LinkBuilder) Link(id string) string {
	host := b.Domain
	if host == "" {
		host = "www.amazon.in"
	}
	query := url.Values{}
	query.Set("tag", b.PartnerTag)
	query.Set("linkCode", "ogi")
	query.Set("th", "1")
	query.Set("psc", "1")
	return fmt.Sprintf("https://%s/dp/%s?%s", host, url.PathEscape(id), query.Encode())
}

// Normalize maps a raw catalog payload onto a ProductRecord, filling absent fields with the sentinel.
// Only the first listing is considered.
func Normalize(raw domain.RawItem, links LinkBuilder) domain.ProductRecord {
	record := domain.ProductRecord{
		ID:           raw.ID,
		Title:        domain.Unavailable,
		ImageURL:     domain.Unavailable,
		Availability: domain.Unavailable,
		AffiliateURL: links.Link(raw.ID),
	}

	if title := trimmed(raw.Title); title != "" {
		record.Title = title
	}
	if image := trimmed(raw.ImageURL); image != "" {
		record.ImageURL = image
	}

	if len(raw.Listings) == 0 {
		return record
	}
	listing := raw.Listings[0]

	if listing.Price != nil {
		record.CurrentPrice = domain.NewPrice(listing.Price.Amount, listing.Price.Currency)
	}
	if listing.SavingBasis != nil {
		record.ReferencePrice = domain.NewPrice(listing.SavingBasis.Amount, listing.SavingBasis.Currency)
	}
	if availability := trimmed(listing.Availability); availability != "" {
		record.Availability = availability
	}
	if listing.MaxOrderQuantity != nil {
		record.MaxOrderQuantity = *listing.MaxOrderQuantity
	}

	if record.CurrentPrice.Valid && record.ReferencePrice.Valid {
		amount, percent := Discount(record.ReferencePrice.Amount, record.CurrentPrice.Amount)
		record.DiscountAmount = domain.NewPrice(amount, record.CurrentPrice.Currency)
		record.DiscountPercent = percent
	}

	return record
}

// Discount returns reference-current and its share of reference in percent.
// A non-positive reference yields a zero percentage.
func Discount(reference, current decimal.Decimal) (decimal.Decimal, float64) {
	amount := reference.Sub(current)
	if !reference.IsPositive() {
		return amount, 0
	}
	percent, _ := amount.Div(reference).Mul(hundred).Float64()
	return amount, percent
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
