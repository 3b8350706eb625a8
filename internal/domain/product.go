package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Unavailable marks a field the catalog did not return.
const Unavailable = "N/A"

// IdentifierLength is the fixed length of a catalog identifier (ASIN).
const IdentifierLength = 10

// RawItem is the loosely shaped catalog payload with every optional field explicit.
type RawItem struct {
	ID       string
	Title    *string
	ImageURL *string
	Listings []RawListing
}

// RawListing is a single offer listing of a RawItem.
type RawListing struct {
	Price            *RawPrice
	SavingBasis      *RawPrice
	Availability     *string
	MaxOrderQuantity *int
}

// RawPrice is an amount as reported by the catalog.
type RawPrice struct {
	Amount   decimal.Decimal
	Currency string
}

// Price is a present-or-absent monetary value.
type Price struct {
	Amount   decimal.Decimal
	Currency string
	Valid    bool
}

// NewPrice builds a valid price.
func NewPrice(amount decimal.Decimal, currency string) Price {
	return Price{Amount: amount, Currency: currency, Valid: true}
}

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "C$",
	"AUD": "A$",
}

// String renders the price for humans, or the sentinel when absent.
func (p Price) String() string {
	if !p.Valid {
		return Unavailable
	}

	places := int32(2)
	if p.Amount.Equal(p.Amount.Truncate(0)) {
		places = 0
	}
	amount := p.Amount.StringFixed(places)

	symbol, ok := currencySymbols[strings.ToUpper(p.Currency)]
	switch {
	case ok:
		return symbol + amount
	case p.Currency != "":
		return p.Currency + " " + amount
	default:
		return amount
	}
}

// ProductRecord is the canonical, normalized view of one catalog item.
type ProductRecord struct {
	ID               string
	Title            string
	ImageURL         string
	CurrentPrice     Price
	ReferencePrice   Price
	DiscountAmount   Price
	DiscountPercent  float64
	Availability     string
	MaxOrderQuantity int
	CategoryScore    int
	AffiliateURL     string
}

// Complete reports whether the record carries enough data to be announced.
func (p ProductRecord) Complete(minDiscount float64) bool {
	return p.Title != Unavailable && p.Title != "" &&
		p.CurrentPrice.Valid &&
		p.DiscountPercent >= minDiscount
}

// HasImage reports whether the record can be sent as an image with caption.
func (p ProductRecord) HasImage() bool {
	return p.ImageURL != "" && p.ImageURL != Unavailable
}

// RankKey orders records by affiliate priority: category weight first, then discount.
func (p ProductRecord) RankKey() float64 {
	return float64(p.CategoryScore)*2 + p.DiscountPercent
}
